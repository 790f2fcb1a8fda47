package cache

import (
	"testing"
	"time"

	"fleet-twin/dashboard/internal/twin"
)

func TestSignatureOrderIndependent(t *testing.T) {
	a := Signature([]string{"281474", "123456", "999"})
	b := Signature([]string{"999", "281474", "123456"})
	if a != b {
		t.Fatalf("signatures differ for same id set: %q vs %q", a, b)
	}
	if a != "123456,281474,999" {
		t.Fatalf("unexpected signature %q", a)
	}
}

func TestGetMissesOnEmptyCache(t *testing.T) {
	c := New(time.Minute)
	if _, ok := c.Get([]string{"1"}); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestPutThenGetRoundTrip(t *testing.T) {
	c := New(time.Minute)
	state := twin.FleetState{CycleID: "cycle-1"}

	c.Put([]string{"1", "2"}, state)

	got, ok := c.Get([]string{"2", "1"})
	if !ok {
		t.Fatal("expected hit for same id set in different order")
	}
	if got.CycleID != "cycle-1" {
		t.Fatalf("got cycle %q, want cycle-1", got.CycleID)
	}
}

func TestDifferentIDSetsDoNotCollide(t *testing.T) {
	c := New(time.Minute)
	c.Put([]string{"1", "2"}, twin.FleetState{CycleID: "fleet"})

	if _, ok := c.Get([]string{"1"}); ok {
		t.Fatal("singleton lookup must not hit the fleet entry")
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(5 * time.Minute)
	c.nowFn = func() time.Time { return now }

	c.Put([]string{"1"}, twin.FleetState{CycleID: "stale"})

	now = now.Add(4 * time.Minute)
	if _, ok := c.Get([]string{"1"}); !ok {
		t.Fatal("entry expired before its TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get([]string{"1"}); ok {
		t.Fatal("entry survived past its TTL")
	}

	// Expired entries are dropped, not just hidden.
	if _, loaded := c.entries.Load(Signature([]string{"1"})); loaded {
		t.Fatal("expired entry still stored")
	}
}

func TestInvalidateDropsEverything(t *testing.T) {
	c := New(time.Minute)
	c.Put([]string{"1"}, twin.FleetState{CycleID: "a"})
	c.Put([]string{"1", "2"}, twin.FleetState{CycleID: "b"})

	c.Invalidate()

	if _, ok := c.Get([]string{"1"}); ok {
		t.Fatal("entry survived Invalidate")
	}
	if _, ok := c.Get([]string{"1", "2"}); ok {
		t.Fatal("entry survived Invalidate")
	}
}
