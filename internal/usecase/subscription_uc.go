// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/domain"
	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/adapter"
	"telegram-private-group/internal/domain/ports/repository"
	"telegram-private-group/internal/infra/logging"
	"telegram-private-group/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase owns the subscription store operations and the two
// calls exposed to the API layer (CreateOrRenew and GetView).
type SubscriptionUseCase interface {
	Create(ctx context.Context, customer *model.TelegramUser, plan *model.Plan, txHash string) (*model.Subscription, error)
	Renew(ctx context.Context, customer *model.TelegramUser, plan *model.Plan, txHash string) (*model.Subscription, error)
	Get(ctx context.Context, customer *model.TelegramUser) (*model.Subscription, error)
	// ExpireAndDelete removes sub while it is still expired at now. It reports
	// false when the record was already gone or has been replaced.
	ExpireAndDelete(ctx context.Context, tx repository.Tx, sub *model.Subscription, now time.Time) (bool, error)

	CreateOrRenew(ctx context.Context, username, period, txHash string) (*model.Subscription, error)
	GetView(ctx context.Context, username string) (*model.SubscriptionView, error)
}

type subscriptionUC struct {
	users  repository.UserRepository
	plans  PlanUseCase
	subs   repository.SubscriptionRepository
	ledger adapter.LedgerValidator
	tm     repository.TransactionManager
	loc    *time.Location
	now    func() time.Time
	log    *zerolog.Logger
}

func NewSubscriptionUseCase(
	users repository.UserRepository,
	plans PlanUseCase,
	subs repository.SubscriptionRepository,
	ledger adapter.LedgerValidator,
	tm repository.TransactionManager,
	loc *time.Location,
	logger *zerolog.Logger,
) *subscriptionUC {
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &subscriptionUC{
		users:  users,
		plans:  plans,
		subs:   subs,
		ledger: ledger,
		tm:     tm,
		loc:    loc,
		now:    time.Now,
		log:    &l,
	}
}

// SetClock replaces the time source.
func (s *subscriptionUC) SetClock(now func() time.Time) { s.now = now }

// Create stores the first subscription of customer. The store rejects a
// second one with ErrAlreadyExists.
func (s *subscriptionUC) Create(ctx context.Context, customer *model.TelegramUser, plan *model.Plan, txHash string) (*model.Subscription, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.Create")()
	return s.store(ctx, customer, plan, txHash, false)
}

// Renew replaces the current subscription of customer, if any, in one
// transaction. The group flag is cleared so the admission job re-asserts it
// for the new record. Without a current subscription it behaves like Create.
func (s *subscriptionUC) Renew(ctx context.Context, customer *model.TelegramUser, plan *model.Plan, txHash string) (*model.Subscription, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.Renew")()
	return s.store(ctx, customer, plan, txHash, true)
}

func (s *subscriptionUC) store(ctx context.Context, customer *model.TelegramUser, plan *model.Plan, txHash string, replace bool) (*model.Subscription, error) {
	if plan.IsZero() {
		return nil, domain.ErrPlanRequired
	}
	if customer.IsZero() {
		return nil, fmt.Errorf("customer: %w", domain.ErrUserNotFound)
	}
	txHash = strings.TrimSpace(txHash)

	var out *model.Subscription
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err := s.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		used, err := s.subs.ExistsByTxHash(ctx, tx, txHash)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("hash %q: %w", txHash, domain.ErrDuplicateTransaction)
		}

		renewal := false
		if replace {
			prev, err := s.subs.FindByCustomer(ctx, tx, customer.ChatID, true)
			switch {
			case err == nil:
				if err := s.subs.DeleteByID(ctx, tx, prev.ID); err != nil {
					return err
				}
				if err := s.users.ClearMembership(ctx, tx, customer.ChatID); err != nil {
					return err
				}
				renewal = true
			case errors.Is(err, domain.ErrSubscriptionNotFound):
			default:
				return err
			}
		}

		sub, err := model.NewSubscription(customer.ChatID, plan, txHash, s.now())
		if err != nil {
			return err
		}
		sub.Renewal = renewal
		sub.Customer = customer
		if err := s.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := "new"
	if out.Renewal {
		kind = "renewal"
	}
	metrics.IncSubscriptionWritten(kind)
	s.log.Info().
		Str("subscription_id", out.ID).
		Int64("chat_id", customer.ChatID).
		Str("plan", plan.Period.String()).
		Str("kind", kind).
		Time("end_at", out.EndAt).
		Msg("subscription stored")
	return out, nil
}

func (s *subscriptionUC) Get(ctx context.Context, customer *model.TelegramUser) (*model.Subscription, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.Get")()
	if customer.IsZero() {
		return nil, domain.ErrUserNotFound
	}
	return s.subs.FindByCustomer(ctx, repository.NoTX, customer.ChatID, false)
}

func (s *subscriptionUC) ExpireAndDelete(ctx context.Context, tx repository.Tx, sub *model.Subscription, now time.Time) (bool, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.ExpireAndDelete")()
	if sub.IsZero() {
		return false, domain.ErrInvalidArgument
	}
	return s.subs.DeleteExpired(ctx, tx, sub.ID, now)
}

// CreateOrRenew checks, in order: the user, the plan, global hash uniqueness
// and the on-chain payment. Only then is the subscription written.
func (s *subscriptionUC) CreateOrRenew(ctx context.Context, username, period, txHash string) (*model.Subscription, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.CreateOrRenew")()
	log := logging.With(ctx, s.log)

	customer, err := s.customer(ctx, username)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.Resolve(ctx, period)
	if err != nil {
		return nil, err
	}

	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, fmt.Errorf("transaction hash: %w", domain.ErrInvalidArgument)
	}
	used, err := s.subs.ExistsByTxHash(ctx, repository.NoTX, txHash)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, fmt.Errorf("hash %q: %w", txHash, domain.ErrDuplicateTransaction)
	}

	if !s.ledger.ValidateTransaction(ctx, txHash, plan.Price) {
		log.Warn().Str("username", customer.Username).Str("tx_hash", txHash).Int64("price", plan.Price).Msg("payment rejected")
		return nil, fmt.Errorf("hash %q: %w", txHash, domain.ErrInvalidTransaction)
	}

	return s.Renew(ctx, customer, plan, txHash)
}

func (s *subscriptionUC) GetView(ctx context.Context, username string) (*model.SubscriptionView, error) {
	defer logging.TraceDuration(s.log, "SubscriptionUC.GetView")()

	customer, err := s.customer(ctx, username)
	if err != nil {
		return nil, err
	}
	sub, err := s.Get(ctx, customer)
	if err != nil {
		return nil, err
	}
	view := model.NewSubscriptionView(sub, customer, s.loc, s.now())
	return &view, nil
}

func (s *subscriptionUC) customer(ctx context.Context, username string) (*model.TelegramUser, error) {
	u, err := s.users.FindByUsername(ctx, repository.NoTX, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("username %q: %w", model.NormalizeUsername(username), domain.ErrUserNotFound)
		}
		return nil, err
	}
	return u, nil
}
