package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-private-group/internal/domain"
	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionSelect = `
SELECT s.id, s.customer_id, s.plan_period, s.price, s.transaction_hash, s.start_at, s.end_at, s.renewal,
       u.chat_id, u.username, u.first_name, u.last_name, u.is_admin, u.in_private_group, u.date_joined
  FROM subscriptions s
  JOIN telegram_users u ON u.chat_id = s.customer_id`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (id, customer_id, plan_period, price, transaction_hash, start_at, end_at, renewal)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.CustomerID, string(s.Plan.Period), s.Plan.Price, s.TxHash, s.StartAt, s.EndAt, s.Renewal)
	if err == nil {
		return nil
	}
	if passThrough(err) {
		return err
	}
	switch code, constraint := pgErrorCode(err); {
	case code == pgUniqueViolation && constraint == "subscriptions_transaction_hash_key":
		return domain.ErrDuplicateTransaction
	case code == pgUniqueViolation:
		return fmt.Errorf("subscription for %d: %w", s.CustomerID, domain.ErrAlreadyExists)
	case code == pgForeignKeyViolation && constraint == "subscriptions_plan_period_fkey":
		return domain.ErrPlanNotFound
	case code == pgForeignKeyViolation:
		return domain.ErrUserNotFound
	}
	return fmt.Errorf("save subscription: %w: %v", domain.ErrOperationFailed, err)
}

func (r *subscriptionRepo) FindByCustomer(ctx context.Context, tx repository.Tx, chatID int64, forUpdate bool) (*model.Subscription, error) {
	q := subscriptionSelect + ` WHERE s.customer_id = $1`
	if forUpdate {
		q += ` FOR UPDATE OF s`
	}
	sub, err := scanSubscription(pickRow(ctx, r.pool, tx, q, chatID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, err
}

func (r *subscriptionRepo) ExistsByTxHash(ctx context.Context, tx repository.Tx, txHash string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE transaction_hash = $1);`
	var exists bool
	if err := pickRow(ctx, r.pool, tx, q, txHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transaction hash: %w", err)
	}
	return exists, nil
}

func (r *subscriptionRepo) DeleteByID(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM subscriptions WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *subscriptionRepo) DeleteExpired(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	const q = `DELETE FROM subscriptions WHERE id = $1 AND end_at <= $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, now)
	if err != nil {
		return false, fmt.Errorf("delete expired subscription: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) ListPendingAdmission(ctx context.Context, tx repository.Tx) ([]*model.Subscription, error) {
	q := subscriptionSelect + ` WHERE u.in_private_group = FALSE ORDER BY s.start_at;`
	return r.queryMany(ctx, tx, q)
}

func (r *subscriptionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	q := subscriptionSelect + ` WHERE s.end_at <= $1 ORDER BY s.end_at;`
	return r.queryMany(ctx, tx, q, now)
}

func (r *subscriptionRepo) ListEndingAfter(ctx context.Context, tx repository.Tx, t time.Time) ([]*model.Subscription, error) {
	q := subscriptionSelect + ` WHERE s.end_at >= $1 ORDER BY s.end_at;`
	return r.queryMany(ctx, tx, q, t)
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var (
		s      model.Subscription
		u      model.TelegramUser
		period string
	)
	err := row.Scan(
		&s.ID, &s.CustomerID, &period, &s.Plan.Price, &s.TxHash, &s.StartAt, &s.EndAt, &s.Renewal,
		&u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.IsAdmin, &u.InPrivateGroup, &u.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	s.Plan.Period = model.Period(period)
	s.Customer = &u
	return &s, nil
}
