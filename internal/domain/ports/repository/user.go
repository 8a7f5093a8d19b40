package repository

import (
	"context"

	"telegram-private-group/internal/domain/model"
)

type UserRepository interface {
	// Create inserts a new user. A taken chat id or username is ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, u *model.TelegramUser) error
	// Save inserts the user or updates its profile and role.
	Save(ctx context.Context, tx Tx, u *model.TelegramUser) error
	FindByChatID(ctx context.Context, tx Tx, chatID int64) (*model.TelegramUser, error)
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.TelegramUser, error)
	ListAdmins(ctx context.Context, tx Tx) ([]*model.TelegramUser, error)

	// MarkAdmitted flips the owner of subscriptionID into the group. It is a
	// no-op (false) when the flag is already set or the subscription is gone.
	MarkAdmitted(ctx context.Context, tx Tx, subscriptionID string) (bool, error)
	// ClearMembership resets the group flag of chatID.
	ClearMembership(ctx context.Context, tx Tx, chatID int64) error
}
