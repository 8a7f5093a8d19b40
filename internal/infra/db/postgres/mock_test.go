//go:build !integration

package postgres

import (
	"context"
	"time"

	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/repository"
	red "telegram-private-group/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPlanRepo mocks the database repository that the Plan decorator wraps.
type mockInnerPlanRepo struct {
	UpsertFunc       func(ctx context.Context, tx repository.Tx, p *model.Plan) error
	FindByPeriodFunc func(ctx context.Context, tx repository.Tx, period model.Period) (*model.Plan, error)
	ListFunc         func(ctx context.Context, tx repository.Tx) ([]*model.Plan, error)
}

func (m *mockInnerPlanRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	return m.UpsertFunc(ctx, tx, p)
}
func (m *mockInnerPlanRepo) FindByPeriod(ctx context.Context, tx repository.Tx, period model.Period) (*model.Plan, error) {
	return m.FindByPeriodFunc(ctx, tx, period)
}
func (m *mockInnerPlanRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return m.ListFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like an empty cache.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

type cacheMiss struct{}

func (cacheMiss) Error() string { return "redis: nil" }

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", cacheMiss{}
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Close() error { return nil }
