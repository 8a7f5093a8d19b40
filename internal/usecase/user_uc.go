package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/domain"
	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/repository"
	"telegram-private-group/internal/infra/logging"
	"telegram-private-group/internal/infra/metrics"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase registers Telegram users and looks them up for the API layer.
type UserUseCase interface {
	Register(ctx context.Context, chatID int64, username, firstName, lastName string) (*model.TelegramUser, error)
	GetByUsername(ctx context.Context, username string) (*model.TelegramUser, error)
	SetAdmin(ctx context.Context, username string, isAdmin bool) error
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUseCase").Logger()
	return &userUC{
		users: users,
		tm:    tm,
		log:   &l,
	}
}

// Register creates a customer. The admin role is never granted here, only
// through SetAdmin. A taken chat id or username is ErrAlreadyExists.
func (u *userUC) Register(ctx context.Context, chatID int64, username, firstName, lastName string) (*model.TelegramUser, error) {
	defer logging.TraceDuration(u.log, "UserUC.Register")()

	nu, err := model.NewTelegramUser(chatID, username, firstName, lastName)
	if err != nil {
		return nil, err
	}

	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.users.FindByChatID(ctx, tx, chatID); err == nil {
			return fmt.Errorf("chat %d: %w", chatID, domain.ErrAlreadyExists)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if _, err := u.users.FindByUsername(ctx, tx, nu.Username); err == nil {
			return fmt.Errorf("username %q: %w", nu.Username, domain.ErrAlreadyExists)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return u.users.Create(ctx, tx, nu)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncUsersRegistered()
	u.log.Info().Int64("chat_id", chatID).Str("username", nu.Username).Msg("user registered")
	return nu, nil
}

func (u *userUC) GetByUsername(ctx context.Context, username string) (*model.TelegramUser, error) {
	defer logging.TraceDuration(u.log, "UserUC.GetByUsername")()

	usr, err := u.users.FindByUsername(ctx, repository.NoTX, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("username %q: %w", model.NormalizeUsername(username), domain.ErrUserNotFound)
		}
		return nil, err
	}
	return usr, nil
}

// SetAdmin grants or revokes the admin role, which makes the user a recipient
// of reconciler notifications.
func (u *userUC) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	defer logging.TraceDuration(u.log, "UserUC.SetAdmin")()

	usr, err := u.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if usr.IsAdmin == isAdmin {
		return nil
	}
	usr.IsAdmin = isAdmin
	return u.users.Save(ctx, repository.NoTX, usr)
}
