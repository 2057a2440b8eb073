package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("get=%q ok=%v err=%v want v", got, ok, err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expired key still present")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := SetJSON(ctx, s, "syms", []string{"A", "B"}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out []string
	ok, err := GetJSON(ctx, s, "syms", &out)
	if err != nil || !ok || len(out) != 2 {
		t.Fatalf("out=%v ok=%v err=%v", out, ok, err)
	}
	_ = s.Set(ctx, "bad", []byte("{"), 0)
	if ok, err := GetJSON(ctx, s, "bad", &out); ok || err != nil {
		t.Fatalf("corrupt entry ok=%v err=%v want miss", ok, err)
	}
}

func TestMemoryLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	release, ok, err := l.TryAcquire(ctx, "rule:1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.TryAcquire(ctx, "rule:1", time.Minute); ok {
		t.Fatalf("second acquire granted while held")
	}
	if _, ok, _ := l.TryAcquire(ctx, "rule:2", time.Minute); !ok {
		t.Fatalf("different key blocked")
	}
	release()
	release()
	if _, ok, _ := l.TryAcquire(ctx, "rule:1", time.Minute); !ok {
		t.Fatalf("acquire after release refused")
	}
}
