package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeLockClient applies SetNX and the check-and-del release in memory.
type fakeLockClient struct {
	values map[string]string
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{values: make(map[string]string)}
}

func (f *fakeLockClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if _, held := f.values[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if script != releaseLockScript {
		return redis.NewCmdResult(nil, nil)
	}
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRefreshLockSingleHolder(t *testing.T) {
	client := newFakeLockClient()
	locks := RefreshLocks{redisClient: client, ttl: time.Minute}
	ctx := context.Background()

	if !locks.Acquire(ctx, "viewer-1", "run-a") {
		t.Fatal("first acquire should succeed")
	}
	if locks.Acquire(ctx, "viewer-1", "run-b") {
		t.Error("second acquire for the same viewer should fail while held")
	}
	if !locks.Acquire(ctx, "viewer-2", "run-c") {
		t.Error("locks should be independent per viewer")
	}
}

func TestRefreshLockReleaseRequiresOwningRun(t *testing.T) {
	client := newFakeLockClient()
	locks := RefreshLocks{redisClient: client, ttl: time.Minute}
	ctx := context.Background()

	if !locks.Acquire(ctx, "viewer-1", "run-a") {
		t.Fatal("acquire should succeed")
	}

	// A run that lost the lock (e.g. it expired and another run took it)
	// must not free the current holder.
	locks.Release(ctx, "viewer-1", "run-stale")
	if locks.Acquire(ctx, "viewer-1", "run-b") {
		t.Fatal("release with a foreign run id must leave the lock held")
	}

	locks.Release(ctx, "viewer-1", "run-a")
	if !locks.Acquire(ctx, "viewer-1", "run-b") {
		t.Error("release by the owning run should free the lock")
	}
}
