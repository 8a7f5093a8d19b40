package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-private-group/internal/domain"
	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

func (r *PostgresPlanRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (period, price)
VALUES ($1, $2)
ON CONFLICT (period) DO UPDATE
  SET price = EXCLUDED.price
WHERE plans.price = EXCLUDED.price
   OR NOT EXISTS (SELECT 1 FROM subscriptions s WHERE s.plan_period = plans.period);`

	tag, err := execSQL(ctx, r.pool, tx, q, string(p.Period), p.Price)
	if err != nil {
		if passThrough(err) {
			return err
		}
		return fmt.Errorf("upsert plan: %w: %v", domain.ErrOperationFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plan %q: %w", p.Period, domain.ErrPlanInUse)
	}
	return nil
}

func (r *PostgresPlanRepo) FindByPeriod(ctx context.Context, tx repository.Tx, period model.Period) (*model.Plan, error) {
	const q = `SELECT period, price FROM plans WHERE period = $1;`
	var p model.Plan
	var raw string
	if err := pickRow(ctx, r.pool, tx, q, string(period)).Scan(&raw, &p.Price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	p.Period = model.Period(raw)
	return &p, nil
}

func (r *PostgresPlanRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT period, price FROM plans ORDER BY price;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		var raw string
		var p model.Plan
		if err := rows.Scan(&raw, &p.Price); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		p.Period = model.Period(raw)
		out = append(out, &p)
	}
	return out, rows.Err()
}
