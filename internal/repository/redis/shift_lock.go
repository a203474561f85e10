package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/repository"
	"hybrid-auth-service/internal/util"
)

const shiftLockPrefix = "shift_start_lock:"

// releaseScript deletes the lock only while it still holds our token, so a
// holder whose TTL lapsed cannot release somebody else's lock.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

type ShiftLock struct {
	client commander
	ttl    time.Duration
}

func NewShiftLock(client commander, ttl time.Duration) *ShiftLock {
	return &ShiftLock{client: client, ttl: ttl}
}

// Acquire takes the per-business start lock, or fails with repository.ErrLockHeld.
// The returned release func never fails the caller.
func (l *ShiftLock) Acquire(ctx context.Context, businessID string) (func(context.Context), error) {
	key := shiftLockPrefix + businessID
	owner := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		util.Error("Failed to acquire shift lock",
			zap.String("business_id", businessID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to acquire shift lock: %w", err)
	}
	if !ok {
		return nil, repository.ErrLockHeld
	}

	util.Debug("Shift lock acquired",
		zap.String("business_id", businessID),
		zap.Duration("ttl", l.ttl))

	release := func(ctx context.Context) {
		if _, err := l.client.Eval(ctx, releaseScript, []string{key}, owner); err != nil {
			util.Warn("Failed to release shift lock",
				zap.String("business_id", businessID),
				zap.Error(err))
		}
	}
	return release, nil
}
