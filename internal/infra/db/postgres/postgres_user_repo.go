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

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const userColumns = `chat_id, username, first_name, last_name, is_admin, in_private_group, date_joined`

// Create is a plain insert so a concurrent registration of the same chat id
// or username fails instead of overwriting the profile.
func (r *PostgresUserRepo) Create(ctx context.Context, tx repository.Tx, u *model.TelegramUser) error {
	const q = `
INSERT INTO telegram_users (chat_id, username, first_name, last_name, is_admin, date_joined)
VALUES ($1,$2,$3,$4,$5,$6);`

	_, err := execSQL(ctx, r.pool, tx, q, u.ChatID, u.Username, u.FirstName, u.LastName, u.IsAdmin, u.JoinedAt)
	if err != nil {
		if passThrough(err) {
			return err
		}
		switch code, constraint := pgErrorCode(err); {
		case code == pgUniqueViolation && constraint == "telegram_users_pkey":
			return fmt.Errorf("chat %d: %w", u.ChatID, domain.ErrAlreadyExists)
		case code == pgUniqueViolation:
			return fmt.Errorf("username %q: %w", u.Username, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("create user: %w: %v", domain.ErrOperationFailed, err)
	}
	return nil
}

// Save inserts the user or updates its profile. in_private_group is left to
// the reconciler methods.
func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.TelegramUser) error {
	const q = `
INSERT INTO telegram_users (chat_id, username, first_name, last_name, is_admin, date_joined)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (chat_id) DO UPDATE SET
  username=$2, first_name=$3, last_name=$4, is_admin=$5;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ChatID, u.Username, u.FirstName, u.LastName, u.IsAdmin, u.JoinedAt)
	if err != nil {
		if passThrough(err) {
			return err
		}
		if code, _ := pgErrorCode(err); code == pgUniqueViolation {
			return fmt.Errorf("username %q: %w", u.Username, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("save user: %w: %v", domain.ErrOperationFailed, err)
	}
	return nil
}

func (r *PostgresUserRepo) FindByChatID(ctx context.Context, tx repository.Tx, chatID int64) (*model.TelegramUser, error) {
	q := `SELECT ` + userColumns + ` FROM telegram_users WHERE chat_id=$1;`
	return scanUser(pickRow(ctx, r.pool, tx, q, chatID))
}

func (r *PostgresUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.TelegramUser, error) {
	q := `SELECT ` + userColumns + ` FROM telegram_users WHERE username=$1;`
	return scanUser(pickRow(ctx, r.pool, tx, q, model.NormalizeUsername(username)))
}

func (r *PostgresUserRepo) ListAdmins(ctx context.Context, tx repository.Tx) ([]*model.TelegramUser, error) {
	q := `SELECT ` + userColumns + ` FROM telegram_users WHERE is_admin ORDER BY chat_id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var out []*model.TelegramUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresUserRepo) MarkAdmitted(ctx context.Context, tx repository.Tx, subscriptionID string) (bool, error) {
	const q = `
UPDATE telegram_users u
   SET in_private_group = TRUE
  FROM subscriptions s
 WHERE s.id = $1
   AND u.chat_id = s.customer_id
   AND u.in_private_group = FALSE;`

	tag, err := execSQL(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return false, fmt.Errorf("mark admitted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresUserRepo) ClearMembership(ctx context.Context, tx repository.Tx, chatID int64) error {
	const q = `UPDATE telegram_users SET in_private_group = FALSE WHERE chat_id = $1;`
	if _, err := execSQL(ctx, r.pool, tx, q, chatID); err != nil {
		return fmt.Errorf("clear membership: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.TelegramUser, error) {
	var u model.TelegramUser
	if err := row.Scan(&u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.IsAdmin, &u.InPrivateGroup, &u.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &u, nil
}
