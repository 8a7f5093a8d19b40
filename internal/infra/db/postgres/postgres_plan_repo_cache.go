package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/repository"
	"telegram-private-group/internal/infra/metrics"
	red "telegram-private-group/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

const plansAllKey = "plans:all"

// planRepoCacheDecorator is a read-through cache for the plan catalog. Cache
// failures fall back to the inner repository.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "PlanCache").Logger(),
	}
}

func planKey(period model.Period) string { return "plan:" + string(period) }

func (d *planRepoCacheDecorator) FindByPeriod(ctx context.Context, tx repository.Tx, period model.Period) (*model.Plan, error) {
	key := planKey(period)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			metrics.IncPlanCacheLookup("period", "hit")
			return &plan, nil
		}
		metrics.IncPlanCacheLookup("period", "miss")
	} else if errors.Is(err, redis.Nil) {
		metrics.IncPlanCacheLookup("period", "miss")
	} else {
		metrics.IncPlanCacheLookup("period", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache read failed")
	}

	plan, err := d.inner.FindByPeriod(ctx, tx, period)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(plan); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("plan cache write failed")
		}
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	val, err := d.cache.Get(ctx, plansAllKey)
	if err == nil {
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			metrics.IncPlanCacheLookup("list", "hit")
			return plans, nil
		}
		metrics.IncPlanCacheLookup("list", "miss")
	} else if errors.Is(err, redis.Nil) {
		metrics.IncPlanCacheLookup("list", "miss")
	} else {
		metrics.IncPlanCacheLookup("list", "error")
		d.log.Warn().Err(err).Str("key", plansAllKey).Msg("plan list cache read failed")
	}

	plans, err := d.inner.List(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		if b, err := json.Marshal(plans); err == nil {
			_ = d.cache.Set(ctx, plansAllKey, b, d.ttl)
		}
	}
	return plans, nil
}

// Upsert invalidates both the entry and the list before writing.
func (d *planRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	if err := d.cache.Del(ctx, planKey(p.Period), plansAllKey); err != nil {
		d.log.Warn().Err(err).Str("period", string(p.Period)).Msg("plan cache invalidation failed")
	}
	return d.inner.Upsert(ctx, tx, p)
}
