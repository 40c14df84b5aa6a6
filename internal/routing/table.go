package routing

import (
	"sync"
	"time"

	"github.com/rfmesh/rfmesh/internal/common"
)

// routeEntry is one row of the routing table: where to send traffic
// bound for a fingerprint, and how long ago it was last confirmed.
type routeEntry struct {
	nextHop  common.Fingerprint
	hopCount int
	lastSeen time.Time
	isDirect bool // seeded by registerDirectPeer; exempt from the 5-minute cleanup sweep
}

// table is the routing table of spec §4.7: direct-peer seeds plus
// opportunistically learned routes, swept every RoutingCleanupInterval
// for stale non-direct entries.
type table struct {
	mu      sync.RWMutex
	entries map[common.Fingerprint]routeEntry
	expiry  time.Duration
}

func newTable(expiry time.Duration) *table {
	return &table{entries: make(map[common.Fingerprint]routeEntry), expiry: expiry}
}

// seedDirect installs or refreshes the (fp → fp, hop=1) entry a direct
// peer registration creates.
func (t *table) seedDirect(fp common.Fingerprint, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fp] = routeEntry{nextHop: fp, hopCount: 1, lastSeen: now, isDirect: true}
}

// removeDirect removes a direct-peer seed, e.g. on unregisterDirectPeer.
func (t *table) removeDirect(fp common.Fingerprint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[fp]; ok && e.isDirect {
		delete(t.entries, fp)
	}
}

// learn records a candidate route, applying spec §4.7's "strictly
// shorter hop count wins" update rule. Direct-peer seeds are never
// overwritten by a learned route with hop=1, since strictly-shorter
// excludes equal hop counts.
func (t *table) learn(destFp, nextHop common.Fingerprint, hopCount int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.entries[destFp]
	if !ok || hopCount < existing.hopCount {
		t.entries[destFp] = routeEntry{nextHop: nextHop, hopCount: hopCount, lastSeen: now, isDirect: false}
		return
	}
	if existing.nextHop == nextHop {
		existing.lastSeen = now
		t.entries[destFp] = existing
	}
}

// nextHop returns the next-hop fingerprint for destFp, if known.
func (t *table) nextHop(destFp common.Fingerprint) (common.Fingerprint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[destFp]
	if !ok {
		return "", false
	}
	return e.nextHop, true
}

// cleanup removes non-direct entries whose lastSeen is older than
// t.expiry.
func (t *table) cleanup(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fp, e := range t.entries {
		if !e.isDirect && now.Sub(e.lastSeen) > t.expiry {
			delete(t.entries, fp)
		}
	}
}
