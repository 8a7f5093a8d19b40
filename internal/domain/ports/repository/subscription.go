package repository

import (
	"context"
	"time"

	"telegram-private-group/internal/domain/model"
)

// SubscriptionRepository is the port for membership subscriptions. List
// methods hydrate Subscription.Customer; an empty batch is a nil slice, not an error.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByCustomer(ctx context.Context, tx Tx, chatID int64, forUpdate bool) (*model.Subscription, error)
	ExistsByTxHash(ctx context.Context, tx Tx, txHash string) (bool, error)
	DeleteByID(ctx context.Context, tx Tx, id string) error
	// DeleteExpired removes the record only while end <= now still holds.
	DeleteExpired(ctx context.Context, tx Tx, id string, now time.Time) (bool, error)

	ListPendingAdmission(ctx context.Context, tx Tx) ([]*model.Subscription, error)
	ListExpired(ctx context.Context, tx Tx, now time.Time) ([]*model.Subscription, error)
	ListEndingAfter(ctx context.Context, tx Tx, t time.Time) ([]*model.Subscription, error)
}
