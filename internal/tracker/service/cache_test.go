package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*SummaryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewSummaryCache(rdb, time.Minute, zap.NewNop()), mr
}

func TestSummaryCacheLoadStore(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	key, ok := c.Key(ctx, "projects")
	if !ok || key != "taskweaver:summary:0:projects" {
		t.Fatalf("Unexpected key %q (ok=%v)", key, ok)
	}

	var got []string
	if c.Load(ctx, key, &got) {
		t.Fatal("Expected miss on empty cache")
	}
	c.Store(ctx, key, []string{"Alpha", "Beta"})
	if !c.Load(ctx, key, &got) || len(got) != 2 || got[1] != "Beta" {
		t.Fatalf("Expected stored value, got %v", got)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("Expected 1m TTL, got %v", ttl)
	}
}

func TestSummaryCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key, _ := c.Key(ctx, "dashboard")
	c.Store(ctx, key, 1)
	c.Invalidate(ctx)

	next, _ := c.Key(ctx, "dashboard")
	if next == key {
		t.Fatalf("Expected a new generation after invalidate, still %q", next)
	}
	var v int
	if c.Load(ctx, next, &v) {
		t.Error("Expected miss after invalidate")
	}
}

func TestSummaryCacheDisabled(t *testing.T) {
	ctx := context.Background()
	for _, c := range []*SummaryCache{nil, NewSummaryCache(nil, 0, nil)} {
		if _, ok := c.Key(ctx, "projects"); ok {
			t.Error("Expected disabled cache to report no key")
		}
		c.Store(ctx, "k", 1)
		c.Invalidate(ctx)
		var v int
		if c.Load(ctx, "k", &v) {
			t.Error("Expected disabled cache to miss")
		}
	}

	calls := 0
	for i := 0; i < 2; i++ {
		v, err := cached(ctx, nil, "n", func() (int, error) { calls++; return calls, nil })
		if err != nil || v != i+1 {
			t.Fatalf("cached: %v, %v", v, err)
		}
	}
}

func TestCachedWriteDuringComputeIsNotServed(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	// 计算期间发生写操作
	v, err := cached(ctx, c, "projects", func() (string, error) {
		c.Invalidate(ctx)
		return "before-write", nil
	})
	if err != nil || v != "before-write" {
		t.Fatalf("cached: %v, %v", v, err)
	}

	v, err = cached(ctx, c, "projects", func() (string, error) {
		return "after-write", nil
	})
	if err != nil {
		t.Fatalf("cached: %v", err)
	}
	if v != "after-write" {
		t.Errorf("Expected recompute after write, got %q", v)
	}

	// 之后命中缓存
	v, _ = cached(ctx, c, "projects", func() (string, error) {
		return "unexpected", nil
	})
	if v != "after-write" {
		t.Errorf("Expected cached value, got %q", v)
	}
}

func TestCachedSkipsStoreOnError(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, err := cached(ctx, c, "weeks", func() ([]string, error) {
		return nil, context.DeadlineExceeded
	}); err == nil {
		t.Fatal("Expected compute error")
	}
	if mr.Exists("taskweaver:summary:0:weeks") {
		t.Error("Expected nothing stored after a failed compute")
	}
}
