package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the lock only while it still holds the
// releasing run's id. A refresh that outlives the TTL must not delete the
// lock a newer run has since acquired.
const releaseLockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RefreshLocks serializes feed materialization per viewer. Concurrent
// refresh calls for the same viewer converge on one scoring run instead of
// double-inserting feed rows: only the caller holding the lock writes.
type RefreshLocks struct {
	redisClient lockClient
	ttl         time.Duration
}

func NewRefreshLocks(redisConnection *redis.Client, ttl time.Duration) RefreshLocks {
	return RefreshLocks{
		redisClient: redisConnection,
		ttl:         ttl,
	}
}

// Acquire takes the refresh lock for a viewer, storing the run id so only
// the owning run can release it. The lock expires on its own after the
// TTL, so a crashed holder cannot wedge the viewer's feed.
func (l *RefreshLocks) Acquire(ctx context.Context, viewerID string, runID string) bool {
	ok, err := l.redisClient.SetNX(ctx, l.redisKey(viewerID), runID, l.ttl).Result()
	return err == nil && ok
}

// Release frees the lock if runID still owns it.
func (l *RefreshLocks) Release(ctx context.Context, viewerID string, runID string) {
	l.redisClient.Eval(ctx, releaseLockScript, []string{l.redisKey(viewerID)}, runID)
}

func (l *RefreshLocks) redisKey(viewerID string) string {
	return fmt.Sprintf("feed_refresh_lock__%s", viewerID)
}
