package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestSnapshots(capacity int, ttl time.Duration) (*snapshots, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newSnapshots(capacity, ttl)
	c.now = clock.now
	return c, clock
}

func hit(v string) entry { return entry{value: v, found: true} }

func TestSnapshots_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestSnapshots(2, time.Minute)
	c.put("expenses", hit("[]"))
	c.put("budgets", hit("{}"))
	c.get("expenses")
	c.put("other", hit("x"))

	if _, ok := c.get("budgets"); ok {
		t.Error("expected budgets to be evicted")
	}
	for _, k := range []string{"expenses", "other"} {
		if _, ok := c.get(k); !ok {
			t.Errorf("expected %s to be cached", k)
		}
	}
	if c.len() != 2 {
		t.Errorf("len = %d, want 2", c.len())
	}
}

func TestSnapshots_ZeroCapacityKeepsOne(t *testing.T) {
	c, _ := newTestSnapshots(0, time.Minute)
	c.put("expenses", hit("[]"))
	if _, ok := c.get("expenses"); !ok {
		t.Error("expected the last snapshot to be kept")
	}
}

func TestSnapshots_Expiry(t *testing.T) {
	c, clock := newTestSnapshots(10, time.Minute)
	c.put("expenses", hit("[]"))
	c.put("budgets", hit("{}"))

	clock.t = clock.t.Add(30 * time.Second)
	c.put("budgets", hit(`{"Food":{}}`))
	clock.t = clock.t.Add(45 * time.Second)

	if _, ok := c.get("expenses"); ok {
		t.Error("expected expenses to be expired")
	}
	if e, ok := c.get("budgets"); !ok || e.value != `{"Food":{}}` {
		t.Errorf("get(budgets) = %+v, %v", e, ok)
	}

	clock.t = clock.t.Add(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if c.len() != 0 {
		t.Errorf("len = %d, want 0", c.len())
	}
}

func TestSnapshots_CachesAbsence(t *testing.T) {
	c, _ := newTestSnapshots(10, time.Minute)
	c.put("budgets", entry{})
	if e, ok := c.get("budgets"); !ok || e.found {
		t.Errorf("get = %+v, %v; want a cached miss", e, ok)
	}
}

func TestSnapshots_Drop(t *testing.T) {
	c, _ := newTestSnapshots(10, time.Minute)
	c.put("expenses", hit("[]"))
	c.drop("expenses")
	c.drop("missing")
	if _, ok := c.get("expenses"); ok {
		t.Error("expected expenses to be dropped")
	}
}

func TestManager_StartStop(t *testing.T) {
	c, clock := newTestSnapshots(10, time.Millisecond)
	c.put("expenses", hit("[]"))
	clock.t = clock.t.Add(time.Second)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for c.len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	if c.len() != 0 {
		t.Errorf("expected manager to clean expired entry, len = %d", c.len())
	}
}
