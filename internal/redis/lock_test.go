package redisclient

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/lock"
)

// newTestLocker needs a live server at REDIS_TEST_ADDR.
func newTestLocker(t *testing.T, ttl, wait time.Duration) lock.Locker {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client, err := NewRedisClient(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, ttl, wait, zap.NewNop())
}

func TestRedisLockerSerializes(t *testing.T) {
	l := newTestLocker(t, 5*time.Second, 5*time.Second)
	key := "test:" + t.Name() + ":" + time.Now().Format(time.RFC3339Nano)

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), key, func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}

func TestRedisLockerBusyKey(t *testing.T) {
	l := newTestLocker(t, 5*time.Second, 50*time.Millisecond)
	key := "test:" + t.Name() + ":" + time.Now().Format(time.RFC3339Nano)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.WithLock(context.Background(), key, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := l.WithLock(context.Background(), key, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, lock.ErrLockNotAcquired)
}

func TestNewRedisClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisClient(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
