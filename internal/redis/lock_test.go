package redisclient

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl, maxWait time.Duration) (Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCalendarLocker(client, ttl, maxWait), mr
}

func TestWithProfessionalLockRunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second, 100*time.Millisecond)
	profID := uuid.New()

	ran := false
	err := locker.WithProfessionalLock(context.Background(), profID, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:prof:"+profID.String()))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// Lock is released, a second acquisition succeeds immediately.
	assert.False(t, mr.Exists("lock:prof:"+profID.String()))
	err = locker.WithProfessionalLock(context.Background(), profID, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestWithProfessionalLockBusy(t *testing.T) {
	locker, mr := newTestLocker(t, 5*time.Second, 50*time.Millisecond)
	profID := uuid.New()

	// Another instance holds the lock.
	mr.Set("lock:prof:"+profID.String(), "someone-else")

	err := locker.WithProfessionalLock(context.Background(), profID, func(ctx context.Context) error {
		t.Fatal("critical section must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockBusy)
}

func TestWithProfessionalLockDoesNotReleaseForeignToken(t *testing.T) {
	locker, mr := newTestLocker(t, 50*time.Millisecond, 200*time.Millisecond)
	profID := uuid.New()
	key := "lock:prof:" + profID.String()

	err := locker.WithProfessionalLock(context.Background(), profID, func(ctx context.Context) error {
		// TTL expires mid-section and another instance grabs the lock.
		mr.FastForward(100 * time.Millisecond)
		mr.Set(key, "other-holder")
		return nil
	})
	require.NoError(t, err)

	// The deferred release must not delete the other holder's lock.
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-holder", val)
}

func TestLocksAreScopedPerProfessional(t *testing.T) {
	locker, _ := newTestLocker(t, time.Second, 50*time.Millisecond)

	profA := uuid.New()
	profB := uuid.New()

	var wg sync.WaitGroup
	wg.Add(1)

	err := locker.WithProfessionalLock(context.Background(), profA, func(ctx context.Context) error {
		// A lock on professional A must not block professional B.
		var innerErr error
		go func() {
			defer wg.Done()
			innerErr = locker.WithProfessionalLock(ctx, profB, func(ctx context.Context) error { return nil })
		}()
		wg.Wait()
		return innerErr
	})
	assert.NoError(t, err)
}

func TestLockSerializesSameProfessional(t *testing.T) {
	locker, _ := newTestLocker(t, time.Second, 2*time.Second)
	profID := uuid.New()

	var mu sync.Mutex
	inSection := 0
	maxInSection := 0

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithProfessionalLock(context.Background(), profID, func(ctx context.Context) error {
				mu.Lock()
				inSection++
				if inSection > maxInSection {
					maxInSection = inSection
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				inSection--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInSection, "critical section must never run concurrently for one professional")
}
