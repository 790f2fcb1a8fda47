// Package cache provides an explicit TTL cache over refresh results. The
// core fetch/build/evaluate pipeline stays cache-agnostic; the caller
// wraps Refresh with this cache and invalidates it on manual refresh.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"fleet-twin/dashboard/internal/twin"
)

type entry struct {
	state     twin.FleetState
	expiresAt time.Time
}

// SnapshotCache stores fleet states keyed by the exact set of vehicle ids
// requested. Order of ids does not matter.
type SnapshotCache struct {
	ttl     time.Duration
	entries sync.Map
	nowFn   func() time.Time
}

func New(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{ttl: ttl, nowFn: time.Now}
}

// Signature derives the cache key for a set of vehicle ids.
func Signature(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func (c *SnapshotCache) Get(ids []string) (twin.FleetState, bool) {
	raw, ok := c.entries.Load(Signature(ids))
	if !ok {
		return twin.FleetState{}, false
	}
	e := raw.(entry)
	if c.nowFn().After(e.expiresAt) {
		c.entries.Delete(Signature(ids))
		return twin.FleetState{}, false
	}
	return e.state, true
}

func (c *SnapshotCache) Put(ids []string, state twin.FleetState) {
	c.entries.Store(Signature(ids), entry{
		state:     state,
		expiresAt: c.nowFn().Add(c.ttl),
	})
}

// Invalidate drops every cached snapshot. Bound to the dashboard's manual
// refresh action.
func (c *SnapshotCache) Invalidate() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}
