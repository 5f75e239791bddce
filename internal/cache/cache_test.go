package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_TTLBoundary(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string, int](30*time.Second, WithClock(clk.Now))
	ctx := context.Background()

	c.Set(ctx, "gas", 7, 0)

	tests := []struct {
		name    string
		advance time.Duration
		wantOK  bool
	}{
		{name: "fresh", advance: 0, wantOK: true},
		{name: "just_before_ttl", advance: 29*time.Second + 999*time.Millisecond, wantOK: true},
		{name: "exactly_ttl_is_expired", advance: time.Millisecond, wantOK: false},
		{name: "long_after", advance: time.Hour, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk.Advance(tt.advance)
			v, ok := c.Get(ctx, "gas")
			if ok != tt.wantOK {
				t.Fatalf("Get ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && v != 7 {
				t.Errorf("Get value = %d, want 7", v)
			}
		})
	}
}

func TestCache_EvictExpired(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string, string](time.Minute, WithClock(clk.Now))
	ctx := context.Background()

	c.Set(ctx, "old", "a", 10*time.Second)
	clk.Advance(5 * time.Second)
	c.Set(ctx, "new", "b", 10*time.Second)
	clk.Advance(6 * time.Second)

	if n := c.EvictExpired(); n != 1 {
		t.Fatalf("evicted %d entries, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get(ctx, "new"); !ok {
		t.Error("fresh entry was evicted")
	}
	if n := c.EvictExpired(); n != 0 {
		t.Errorf("second pass evicted %d, want 0", n)
	}
}

func TestCache_OverwriteRefreshesStoredAt(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string, int](10*time.Second, WithClock(clk.Now))
	ctx := context.Background()

	c.Set(ctx, "k", 1, 0)
	clk.Advance(8 * time.Second)
	c.Set(ctx, "k", 2, 0)
	clk.Advance(8 * time.Second)

	v, ok := c.Get(ctx, "k")
	if !ok || v != 2 {
		t.Errorf("Get = (%d, %v), want (2, true)", v, ok)
	}
}

func TestCache_StartEvictionOnlyOnce(t *testing.T) {
	c := New[string, int](time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evicted := make(chan int, 4)
	if !c.StartEviction(ctx, 5*time.Millisecond, func(n int) { evicted <- n }) {
		t.Fatal("first StartEviction should start the loop")
	}
	if c.StartEviction(ctx, 5*time.Millisecond, nil) {
		t.Error("second StartEviction should be a no-op")
	}

	c.Set(ctx, "x", 1, 0)

	select {
	case n := <-evicted:
		if n != 1 {
			t.Errorf("loop evicted %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("eviction loop never ran")
	}

	c.Close()
	c.Close()
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int](time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(ctx, i%5, i, 0)
			c.Get(ctx, i%5)
			c.EvictExpired()
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Errorf("Len = %d, want 5", c.Len())
	}
}
