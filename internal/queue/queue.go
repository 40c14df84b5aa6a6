// Package queue implements store-and-forward (spec §4.9): a bounded,
// expiring, per-destination queue of encrypted messages waiting for
// their recipient to come back online.
package queue

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/store"
)

// record is one pending message, persisted as one JSON value per store
// key under the destination's key prefix.
type record struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"` // unix seconds
	Payload   []byte `json:"payload"`
}

// Store is the store-and-forward queue, backed by internal/store.
type Store struct {
	db *store.DB
}

// New wraps db as a store-and-forward Store.
func New(db *store.DB) *Store {
	return &Store{db: db}
}

func prefixFor(destFp common.Fingerprint) []byte {
	return []byte("queue/" + string(destFp) + "/")
}

func keyFor(destFp common.Fingerprint, id string) []byte {
	return append(prefixFor(destFp), []byte(id)...)
}

// Queue appends a pending record for destFp. If this pushes the
// destination's queue past common.StoreAndForwardPerPeer, the oldest
// records are discarded until exactly that many remain (spec §4.9).
func (s *Store) Queue(destFp common.Fingerprint, encryptedBytes []byte, nowUnix int64) error {
	rec := record{ID: uuid.New().String(), CreatedAt: nowUnix, Payload: encryptedBytes}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.db.Put(keyFor(destFp, rec.ID), raw); err != nil {
		return common.ErrStorageIO
	}
	return s.trimOldest(destFp)
}

func (s *Store) trimOldest(destFp common.Fingerprint) error {
	var records []record
	err := s.db.IterPrefix(prefixFor(destFp), func(key, value []byte) error {
		var r record
		if err := json.Unmarshal(value, &r); err != nil {
			return nil // skip corrupt records rather than fail the whole scan
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return err
	}
	if len(records) <= common.StoreAndForwardPerPeer {
		return nil
	}

	// Records come back from IterPrefix in key order, and keys end in a
	// random UUID; sort by creation time to find the true head.
	sortByCreatedAt(records)
	toDrop := len(records) - common.StoreAndForwardPerPeer
	for _, r := range records[:toDrop] {
		if err := s.db.Delete(keyFor(destFp, r.ID)); err != nil {
			return common.ErrStorageIO
		}
	}
	return nil
}

// Flush reads and deletes all pending records for destFp, dropping any
// whose expiry has passed, and returns the remaining payloads in
// creation order (spec §4.9). Expiry is common.QueueExpiry from
// creation.
func (s *Store) Flush(destFp common.Fingerprint, nowUnix int64) ([][]byte, error) {
	var records []record
	err := s.db.IterPrefix(prefixFor(destFp), func(key, value []byte) error {
		var r record
		if err := json.Unmarshal(value, &r); err != nil {
			return nil
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByCreatedAt(records)

	expirySeconds := int64(common.QueueExpiry.Seconds())
	out := make([][]byte, 0, len(records))
	for _, r := range records {
		if err := s.db.Delete(keyFor(destFp, r.ID)); err != nil {
			return nil, common.ErrStorageIO
		}
		if nowUnix-r.CreatedAt >= expirySeconds {
			continue
		}
		out = append(out, r.Payload)
	}
	return out, nil
}

// Depth reports how many messages are currently queued for destFp,
// without consuming them.
func (s *Store) Depth(destFp common.Fingerprint) (int, error) {
	count := 0
	err := s.db.IterPrefix(prefixFor(destFp), func(key, value []byte) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func sortByCreatedAt(records []record) {
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt < records[j].CreatedAt })
}
