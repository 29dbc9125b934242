package contentcache

import (
	"sort"
	"sync"
	"time"
)

const (
	fastTierTTL = 24 * time.Hour

	// Size bounds for the fast tier: a periodic sweep evicts oldest entries
	// down to targetCount once above softCap; a write crossing hardCap
	// triggers an immediate eviction pass.
	fastTierSoftCap     = 500
	fastTierTargetCount = 300
	fastTierHardCap     = 1000
)

type fastTier struct {
	mu      sync.Mutex
	entries map[string]Entry

	ttl         time.Duration
	softCap     int
	targetCount int
	hardCap     int
	now         func() time.Time
}

func newFastTier(now func() time.Time) *fastTier {
	return &fastTier{
		entries:     make(map[string]Entry),
		ttl:         fastTierTTL,
		softCap:     fastTierSoftCap,
		targetCount: fastTierTargetCount,
		hardCap:     fastTierHardCap,
		now:         now,
	}
}

// get returns a live entry. Expired entries are purged and treated as a miss.
func (t *fastTier) get(hash string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[hash]
	if !ok {
		return Entry{}, false
	}
	if t.now().Sub(entry.CreatedAt) >= t.ttl {
		delete(t.entries, hash)
		return Entry{}, false
	}
	return entry, true
}

// put stores an entry and runs an immediate eviction pass when the write
// pushes the tier above its hard cap.
func (t *fastTier) put(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[entry.Hash] = entry
	if len(t.entries) > t.hardCap {
		t.evictOldestLocked(t.targetCount)
	}
}

// sweep purges entries older than the TTL horizon regardless of count, then
// evicts oldest-first down to the target count when above the soft cap.
func (t *fastTier) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for hash, entry := range t.entries {
		if now.Sub(entry.CreatedAt) >= t.ttl {
			delete(t.entries, hash)
		}
	}
	if len(t.entries) > t.softCap {
		t.evictOldestLocked(t.targetCount)
	}
}

func (t *fastTier) evictOldestLocked(target int) {
	excess := len(t.entries) - target
	if excess <= 0 {
		return
	}

	type aged struct {
		hash      string
		createdAt time.Time
	}
	all := make([]aged, 0, len(t.entries))
	for hash, entry := range t.entries {
		all = append(all, aged{hash: hash, createdAt: entry.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].createdAt.Before(all[j].createdAt)
	})
	for _, candidate := range all[:excess] {
		delete(t.entries, candidate.hash)
	}
}

func (t *fastTier) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
