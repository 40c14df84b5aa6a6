package identity

import (
	"encoding/json"
	"sync"

	"github.com/rfmesh/rfmesh/internal/common"
	"github.com/rfmesh/rfmesh/internal/store"
)

// TrustLevel is a peer's verification standing (spec §6 "trust.json").
type TrustLevel string

const (
	TrustUnknown  TrustLevel = "Unknown"
	TrustVerified TrustLevel = "Verified"
	TrustFavorite TrustLevel = "Favorite"
)

const trustDBKey = "identity/trust"

// TrustStore maps peer fingerprints to their trust level, persisted as
// a single JSON document (mirroring the teacher's own settings-blob
// persistence style).
type TrustStore struct {
	mu     sync.RWMutex
	db     *store.DB
	levels map[common.Fingerprint]TrustLevel
}

// LoadTrustStore reads trust.json-equivalent state from db, starting
// empty if none is stored yet.
func LoadTrustStore(db *store.DB) (*TrustStore, error) {
	ts := &TrustStore{db: db, levels: make(map[common.Fingerprint]TrustLevel)}

	raw, found, err := db.Get([]byte(trustDBKey))
	if err != nil {
		return nil, common.ErrStorageIO
	}
	if !found {
		return ts, nil
	}

	var onDisk map[common.Fingerprint]TrustLevel
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		// Corrupt trust state is not fatal to startup; begin empty.
		return ts, nil
	}
	ts.levels = onDisk
	return ts, nil
}

// Get returns fp's trust level, defaulting to Unknown for a peer never
// seen before.
func (ts *TrustStore) Get(fp common.Fingerprint) TrustLevel {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if lvl, ok := ts.levels[fp]; ok {
		return lvl
	}
	return TrustUnknown
}

// Known returns every fingerprint this store has ever recorded a trust
// level for.
func (ts *TrustStore) Known() []common.Fingerprint {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]common.Fingerprint, 0, len(ts.levels))
	for fp := range ts.levels {
		out = append(out, fp)
	}
	return out
}

// Set records fp's trust level and persists the full map.
func (ts *TrustStore) Set(fp common.Fingerprint, level TrustLevel) error {
	ts.mu.Lock()
	ts.levels[fp] = level
	snapshot := make(map[common.Fingerprint]TrustLevel, len(ts.levels))
	for k, v := range ts.levels {
		snapshot[k] = v
	}
	ts.mu.Unlock()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := ts.db.Put([]byte(trustDBKey), raw); err != nil {
		return common.ErrStorageIO
	}
	return nil
}
