package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLocker(t *testing.T) {
	ctx := context.WithValue(context.Background(), struct{}{}, "marker")
	boom := errors.New("boom")

	var got context.Context
	err := NoopLocker{}.WithSlotLock(ctx, uuid.New(), func(inner context.Context) error {
		got = inner
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "marker", got.Value(struct{}{}))
}

func TestSlotLocker_KeyPerSlot(t *testing.T) {
	l := NewRedisSlotLocker(nil, time.Second)
	a, b := uuid.New(), uuid.New()

	assert.Equal(t, "emerald:lock:slot:"+a.String(), l.key(a))
	assert.NotEqual(t, l.key(a), l.key(b))
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb, err := Connect(ctx, Options{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Nil(t, rdb)
	assert.Contains(t, err.Error(), "ping redis 127.0.0.1:1")
}
