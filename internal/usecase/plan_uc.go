package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-private-group/internal/domain"
	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/repository"
	"telegram-private-group/internal/infra/logging"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

// PlanUseCase resolves plan periods to the stored catalog.
type PlanUseCase interface {
	Resolve(ctx context.Context, period string) (*model.Plan, error)
	List(ctx context.Context) ([]*model.Plan, error)
	Seed(ctx context.Context, prices map[string]int64) error
}

type planUC struct {
	plans repository.PlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, logger *zerolog.Logger) *planUC {
	l := logger.With().Str("component", "PlanUseCase").Logger()
	return &planUC{plans: plans, log: &l}
}

// Resolve parses the period token and loads its price. Unknown tokens and
// periods missing from the store both yield ErrPlanNotFound.
func (p *planUC) Resolve(ctx context.Context, period string) (*model.Plan, error) {
	defer logging.TraceDuration(p.log, "PlanUC.Resolve")()

	pp, err := model.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	plan, err := p.plans.FindByPeriod(ctx, repository.NoTX, pp)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("plan %q: %w", period, domain.ErrPlanNotFound)
		}
		return nil, err
	}
	return plan, nil
}

func (p *planUC) List(ctx context.Context) ([]*model.Plan, error) {
	defer logging.TraceDuration(p.log, "PlanUC.List")()
	return p.plans.List(ctx, repository.NoTX)
}

// Seed upserts the catalog prices keyed by period token. A plan already
// referenced by subscriptions keeps its stored price; that is logged and skipped.
func (p *planUC) Seed(ctx context.Context, prices map[string]int64) error {
	defer logging.TraceDuration(p.log, "PlanUC.Seed")()

	byPeriod := make(map[model.Period]int64, len(prices))
	for token, price := range prices {
		period, err := model.ParsePeriod(token)
		if err != nil {
			return fmt.Errorf("plan %q: %w", token, err)
		}
		byPeriod[period] = price
	}

	for _, period := range model.Periods() {
		price, ok := byPeriod[period]
		if !ok {
			continue
		}
		plan, err := model.NewPlan(period, price)
		if err != nil {
			return fmt.Errorf("plan %q: %w", period, err)
		}
		if err := p.plans.Upsert(ctx, repository.NoTX, plan); err != nil {
			if errors.Is(err, domain.ErrPlanInUse) {
				p.log.Warn().Str("period", period.String()).Int64("price", price).Msg("plan in use; price not changed")
				continue
			}
			return err
		}
		p.log.Info().Str("period", period.String()).Int64("price", price).Msg("plan seeded")
	}
	return nil
}
