//go:build !integration

package redis

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient keeps string keys in memory; expiration is ignored.
type fakeClient struct {
	mu     sync.Mutex
	data   map[string]string
	setErr error
}

func newFakeClient() *fakeClient { return &fakeClient{data: map[string]string{}} }

func (f *fakeClient) Ping(context.Context) error { return nil }
func (f *fakeClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	return nil
}
func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}
func (f *fakeClient) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}
func (f *fakeClient) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}
func (f *fakeClient) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[key] != value {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}
func (f *fakeClient) Close() error { return nil }

func TestJobLocker(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("should grant the lock once until released", func(t *testing.T) {
		locker := NewJobLocker(newFakeClient(), &logger)

		unlock, ok, err := locker.TryLock(ctx, "admission", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = locker.TryLock(ctx, "admission", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "second holder must be refused")

		unlock()
		_, ok, err = locker.TryLock(ctx, "admission", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "lock must be free after unlock")
	})

	t.Run("should not release a lock taken over by another holder", func(t *testing.T) {
		cli := newFakeClient()
		locker := NewJobLocker(cli, &logger)

		unlock, ok, _ := locker.TryLock(ctx, "expiration", time.Minute)
		require.True(t, ok)
		// simulate expiry and a new holder
		cli.data["lock:job:expiration"] = "someone-else"

		unlock()
		assert.Equal(t, "someone-else", cli.data["lock:job:expiration"])
	})

	t.Run("should surface redis errors", func(t *testing.T) {
		cli := newFakeClient()
		cli.setErr = errors.New("connection refused")
		locker := NewJobLocker(cli, &logger)

		_, ok, err := locker.TryLock(ctx, "admission", time.Minute)
		assert.False(t, ok)
		assert.Error(t, err)
	})
}
