package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	c := NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetMissLeavesDestinationEmpty(t *testing.T) {
	c, _ := newTestCache(t)
	var d doc
	if err := c.Get(context.Background(), "missing", &d); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Name != "" || d.Count != 0 {
		t.Fatalf("expected zero value, got %+v", d)
	}
}

func TestSetGetDelWithTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	if err := c.Set(ctx, "k", doc{Name: "a", Count: 2}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var d doc
	if err := c.Get(ctx, "k", &d); err != nil || d.Name != "a" || d.Count != 2 {
		t.Fatalf("Get: %+v %v", d, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %s", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Fatalf("expected key to expire")
	}
	_ = c.Set(ctx, "k2", doc{Name: "b"}, time.Minute)
	if err := c.Del(ctx, "k2"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if ok, _ := c.Exists(ctx, "k2"); ok {
		t.Fatalf("expected key deleted")
	}
}

func TestGetCorruptPayload(t *testing.T) {
	c, mr := newTestCache(t)
	_ = mr.Set("bad", "{not json")
	var d doc
	if err := c.Get(context.Background(), "bad", &d); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestUpdateCreatesAndModifies(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	got, err := Update(ctx, c, "u", time.Minute, func(cur *doc, exists bool) error {
		if exists {
			t.Fatalf("expected absent key")
		}
		cur.Name = "first"
		cur.Count = 1
		return nil
	})
	if err != nil || got.Count != 1 {
		t.Fatalf("Update create: %+v %v", got, err)
	}
	got, err = Update(ctx, c, "u", time.Minute, func(cur *doc, exists bool) error {
		if !exists || cur.Name != "first" {
			t.Fatalf("expected stored doc, got %+v", cur)
		}
		cur.Count++
		return nil
	})
	if err != nil || got.Count != 2 {
		t.Fatalf("Update modify: %+v %v", got, err)
	}
}

func TestUpdateNoChangeAndAbort(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "u", doc{Name: "x", Count: 5}, time.Minute)

	got, err := Update(ctx, c, "u", time.Minute, func(cur *doc, exists bool) error {
		cur.Count = 99
		return ErrNoChange
	})
	if err != nil || got == nil {
		t.Fatalf("Update no change: %v", err)
	}
	var stored doc
	_ = c.Get(ctx, "u", &stored)
	if stored.Count != 5 {
		t.Fatalf("ErrNoChange must not write, stored %+v", stored)
	}

	boom := errors.New("boom")
	if _, err := Update(ctx, c, "u", time.Minute, func(cur *doc, exists bool) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestUpdateSerializesConcurrentWriters(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	const writers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	conflicts := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Update(ctx, c, "counter", time.Minute, func(cur *doc, exists bool) error {
				cur.Count++
				return nil
			})
			if errors.Is(err, ErrConflict) {
				mu.Lock()
				conflicts++
				mu.Unlock()
				return
			}
			if err != nil {
				t.Errorf("Update: %v", err)
			}
		}()
	}
	wg.Wait()
	var d doc
	_ = c.Get(ctx, "counter", &d)
	if d.Count != writers-conflicts {
		t.Fatalf("lost update: count=%d conflicts=%d", d.Count, conflicts)
	}
}
