// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/domain/ports/adapter"
)

var (
	_ adapter.JobLocker = (*JobLocker)(nil)
	_ adapter.JobLocker = NoopLocker{}
)

// JobLocker is a single-attempt mutex over SET NX PX. The token makes the
// unlock a compare-and-delete so an expired holder cannot release a newer lock.
type JobLocker struct {
	cli    RedisClient
	prefix string
	log    zerolog.Logger
}

func NewJobLocker(c RedisClient, logger *zerolog.Logger) *JobLocker {
	return &JobLocker{
		cli:    c,
		prefix: "lock:job:",
		log:    logger.With().Str("component", "JobLocker").Logger(),
	}
}

func (l *JobLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	full := l.prefix + key
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, full, token, ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}
	unlock := func() {
		// the run context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.cli.CompareAndDelete(ctx, full, token); err != nil {
			l.log.Warn().Err(err).Str("key", full).Msg("unlock failed, lock will expire")
		}
	}
	return unlock, true, nil
}

// NoopLocker always grants the lock. Used when Redis is not configured.
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
