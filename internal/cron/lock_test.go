package cron

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memLockStore struct {
	data map[string]string
}

func (m *memLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func TestRedisLockExclusive(t *testing.T) {
	ctx := context.Background()
	store := &memLockStore{data: map[string]string{}}
	first, err := NewRedisLock(store, "fixers:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "fixers:lock:cron", time.Minute)

	t.Setenv("DYNO", "")
	t.Setenv("WORKER_ID", "worker-1")
	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if holder, err := second.Holder(ctx); err != nil || holder != "worker-1" {
		t.Fatalf("expected worker-1 as holder, got %q err=%v", holder, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance should not acquire a held lock")
	}
	// a non-owner release leaves the lock alone
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, held := store.data["fixers:lock:cron"]; !held {
		t.Fatal("non-owner release must not drop the lock")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if holder, _ := first.Holder(ctx); holder != "" {
		t.Fatalf("expected free lock, got holder %q", holder)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after the owner releases")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected nil client error")
	}
	store := &memLockStore{data: map[string]string{}}
	if _, err := NewRedisLock(store, "", time.Minute); err == nil {
		t.Fatal("expected empty key error")
	}
	lock, err := NewRedisLock(store, "k", 0)
	if err != nil || lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %v err=%v", lock, err)
	}
}
