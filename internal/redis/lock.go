package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("slot lock not acquired")

// Locker serializes booking attempts per time slot across api-server
// instances. The database claim remains the source of truth.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

// SlotLocker leases one Redis key per slot. Each lease carries a random token
// and is only deleted by its holder, so a request that outlived its lease
// cannot free a lock someone else now holds.
type SlotLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) *SlotLocker {
	return &SlotLocker{client: client, ttl: ttl, prefix: "emerald:lock:slot"}
}

func (l *SlotLocker) key(slotID uuid.UUID) string {
	return l.prefix + ":" + slotID.String()
}

// WithSlotLock runs fn while holding the slot's lease. fn's context expires
// with the lease. A held lease fails fast with ErrLockNotAcquired.
func (l *SlotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key, token := l.key(slotID), uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	switch {
	case err != nil:
		return fmt.Errorf("acquire slot lock: %w", err)
	case !acquired:
		return ErrLockNotAcquired
	}
	defer l.release(ctx, key, token)

	leaseCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(leaseCtx)
}

var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// release runs detached from ctx so a cancelled request still frees its key.
func (l *SlotLocker) release(ctx context.Context, key, token string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = compareAndDelete.Run(relCtx, l.client, []string{key}, token).Err()
}

// NoopLocker runs fn directly. Used when Redis is not configured and in tests.
type NoopLocker struct{}

func (NoopLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
