package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles short-lived trip locks in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireTripLock attempts to lock a trip for owner.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireTripLock(ctx context.Context, tripID, owner string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, tripLockKey(tripID), owner, ttl).Result()
}

// ReleaseTripLock releases the trip lock if owner still holds it.
func (s *LockStore) ReleaseTripLock(ctx context.Context, tripID, owner string) error {
	return releaseScript.Run(ctx, s.client, []string{tripLockKey(tripID)}, owner).Err()
}

func tripLockKey(tripID string) string {
	return "lock:trip:" + tripID
}
