package repository

import (
	"context"

	"telegram-private-group/internal/domain/model"
)

type PlanRepository interface {
	// Upsert inserts a plan or updates its price while no subscription references it.
	Upsert(ctx context.Context, tx Tx, p *model.Plan) error
	FindByPeriod(ctx context.Context, tx Tx, period model.Period) (*model.Plan, error)
	List(ctx context.Context, tx Tx) ([]*model.Plan, error)
}
