package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/adapter"
	"telegram-private-group/internal/domain/ports/repository"
	"telegram-private-group/internal/infra/logging"
	"telegram-private-group/internal/infra/metrics"
)

// Compile-time check
var _ ReconcilerUseCase = (*reconcilerUC)(nil)

// ReconcilerUseCase aligns the group membership flags with subscription
// validity. Each run is safe to repeat: state changes are conditional and a
// failed notification is simply retried by the next run.
type ReconcilerUseCase interface {
	RunAdmission(ctx context.Context) (RunReport, error)
	RunExpiration(ctx context.Context) (RunReport, error)
	RunReminders(ctx context.Context, days int) (RunReport, error)
}

// Composer renders the notification texts sent by the reconciler.
type Composer interface {
	AddUser(admin *model.TelegramUser, sub *model.Subscription) string
	KeepUser(admin *model.TelegramUser, sub *model.Subscription) string
	DeleteUser(admin *model.TelegramUser, sub *model.Subscription) string
	Reminder(sub *model.Subscription, days int) string
	ReminderLog(admin *model.TelegramUser, sub *model.Subscription, days int, delivered bool) string
}

// RunReport summarizes one reconciler pass.
type RunReport struct {
	Scanned      int
	Transitioned int
	Notified     int
	Failed       int
}

func (r RunReport) String() string {
	return fmt.Sprintf("scanned=%d transitioned=%d notified=%d failed=%d", r.Scanned, r.Transitioned, r.Notified, r.Failed)
}

// ReminderOptions configures the customer reminder.
type ReminderOptions struct {
	// PhotoPath, when set, sends the reminder as a photo caption.
	PhotoPath string
}

type reconcilerUC struct {
	users    repository.UserRepository
	subs     repository.SubscriptionRepository
	store    SubscriptionUseCase
	tm       repository.TransactionManager
	msg      adapter.Messenger
	compose  Composer
	reminder ReminderOptions
	now      func() time.Time
	log      *zerolog.Logger
}

func NewReconcilerUseCase(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	store SubscriptionUseCase,
	tm repository.TransactionManager,
	msg adapter.Messenger,
	compose Composer,
	reminder ReminderOptions,
	logger *zerolog.Logger,
) *reconcilerUC {
	l := logger.With().Str("component", "Reconciler").Logger()
	return &reconcilerUC{
		users:    users,
		subs:     subs,
		store:    store,
		tm:       tm,
		msg:      msg,
		compose:  compose,
		reminder: reminder,
		now:      time.Now,
		log:      &l,
	}
}

// SetClock replaces the time source.
func (r *reconcilerUC) SetClock(now func() time.Time) { r.now = now }

// RunAdmission asks admins to add every customer that is not in the group
// yet. The first admin that receives the message ends the fan-out for that
// subscription and the flag is set.
func (r *reconcilerUC) RunAdmission(ctx context.Context) (RunReport, error) {
	defer logging.TraceDuration(r.log, "Reconciler.RunAdmission")()
	const job = "admission"
	log := logging.With(ctx, r.log)

	var rep RunReport
	pending, err := r.subs.ListPendingAdmission(ctx, repository.NoTX)
	if err != nil {
		return rep, fmt.Errorf("list pending admission: %w", err)
	}
	rep.Scanned = len(pending)
	if len(pending) == 0 {
		return rep, nil
	}
	admins, err := r.users.ListAdmins(ctx, repository.NoTX)
	if err != nil {
		return rep, fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		log.Warn().Int("pending", len(pending)).Msg("no admins to notify")
	}

	for _, sub := range pending {
		if err := ctx.Err(); err != nil {
			r.record(job, rep)
			return rep, err
		}
		r.isolate(log, job, sub, &rep, func() {
			if !r.fanOut(ctx, admins, sub, func(admin *model.TelegramUser) string {
				if sub.Renewal {
					return r.compose.KeepUser(admin, sub)
				}
				return r.compose.AddUser(admin, sub)
			}) {
				rep.Failed++
				log.Warn().Str("subscription_id", sub.ID).Int64("chat_id", sub.CustomerID).Msg("admission notice not delivered; will retry")
				return
			}
			rep.Notified++

			changed, err := r.users.MarkAdmitted(ctx, repository.NoTX, sub.ID)
			if err != nil {
				rep.Failed++
				log.Error().Err(err).Str("subscription_id", sub.ID).Msg("mark admitted failed")
				return
			}
			if changed {
				rep.Transitioned++
				metrics.IncMembershipTransition("admitted")
			}
		})
	}

	r.record(job, rep)
	log.Debug().Stringer("report", rep).Msg("admission run finished")
	return rep, nil
}

// RunExpiration asks admins to remove customers whose subscription ended.
// The record is deleted and the flag cleared in one transaction, and only
// after an admin got the message; otherwise the record stays for the next run.
func (r *reconcilerUC) RunExpiration(ctx context.Context) (RunReport, error) {
	defer logging.TraceDuration(r.log, "Reconciler.RunExpiration")()
	const job = "expiration"
	log := logging.With(ctx, r.log)

	var rep RunReport
	now := r.now()
	expired, err := r.subs.ListExpired(ctx, repository.NoTX, now)
	if err != nil {
		return rep, fmt.Errorf("list expired: %w", err)
	}
	rep.Scanned = len(expired)
	if len(expired) == 0 {
		return rep, nil
	}
	admins, err := r.users.ListAdmins(ctx, repository.NoTX)
	if err != nil {
		return rep, fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		log.Warn().Int("expired", len(expired)).Msg("no admins to notify")
	}

	for _, sub := range expired {
		if err := ctx.Err(); err != nil {
			r.record(job, rep)
			return rep, err
		}
		r.isolate(log, job, sub, &rep, func() {
			if !r.fanOut(ctx, admins, sub, func(admin *model.TelegramUser) string {
				return r.compose.DeleteUser(admin, sub)
			}) {
				rep.Failed++
				log.Warn().Str("subscription_id", sub.ID).Int64("chat_id", sub.CustomerID).Msg("removal notice not delivered; will retry")
				return
			}
			rep.Notified++

			var removed bool
			err := r.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
				ok, err := r.store.ExpireAndDelete(ctx, tx, sub, now)
				if err != nil || !ok {
					return err
				}
				if err := r.users.ClearMembership(ctx, tx, sub.CustomerID); err != nil {
					return err
				}
				removed = true
				return nil
			})
			if err != nil {
				rep.Failed++
				log.Error().Err(err).Str("subscription_id", sub.ID).Msg("expire subscription failed")
				return
			}
			if removed {
				rep.Transitioned++
				metrics.IncMembershipTransition("removed")
			}
		})
	}

	r.record(job, rep)
	log.Debug().Stringer("report", rep).Msg("expiration run finished")
	return rep, nil
}

// RunReminders notifies every customer whose subscription ends at or after
// now+days, then logs the outcome to each admin. Nothing is persisted, so a
// subscription keeps matching on later runs while the predicate holds.
func (r *reconcilerUC) RunReminders(ctx context.Context, days int) (RunReport, error) {
	defer logging.TraceDuration(r.log, "Reconciler.RunReminders")()
	job := fmt.Sprintf("reminder_%dd", days)
	log := logging.With(ctx, r.log).With().Int("days", days).Logger()

	var rep RunReport
	if days <= 0 {
		return rep, fmt.Errorf("reminder window %d: must be positive", days)
	}
	threshold := r.now().Add(time.Duration(days) * 24 * time.Hour)
	due, err := r.subs.ListEndingAfter(ctx, repository.NoTX, threshold)
	if err != nil {
		return rep, fmt.Errorf("list ending after: %w", err)
	}
	rep.Scanned = len(due)
	if len(due) == 0 {
		return rep, nil
	}
	admins, err := r.users.ListAdmins(ctx, repository.NoTX)
	if err != nil {
		return rep, fmt.Errorf("list admins: %w", err)
	}

	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			r.record(job, rep)
			return rep, err
		}
		r.isolate(&log, job, sub, &rep, func() {
			text := r.compose.Reminder(sub, days)
			var delivered bool
			if r.reminder.PhotoPath != "" {
				delivered = r.msg.SendPhoto(ctx, sub.CustomerID, text, r.reminder.PhotoPath)
			} else {
				delivered = r.msg.SendMessage(ctx, sub.CustomerID, text)
			}
			if delivered {
				rep.Notified++
			} else {
				rep.Failed++
				log.Warn().Str("subscription_id", sub.ID).Int64("chat_id", sub.CustomerID).Msg("reminder not delivered")
			}

			for _, admin := range admins {
				if !r.msg.SendMessage(ctx, admin.ChatID, r.compose.ReminderLog(admin, sub, days, delivered)) {
					log.Warn().Int64("admin", admin.ChatID).Str("subscription_id", sub.ID).Msg("reminder log not delivered")
				}
			}
		})
	}

	r.record(job, rep)
	log.Debug().Stringer("report", rep).Msg("reminder run finished")
	return rep, nil
}

// fanOut sends the text built for each admin in turn and stops at the first
// accepted message.
func (r *reconcilerUC) fanOut(ctx context.Context, admins []*model.TelegramUser, sub *model.Subscription, text func(*model.TelegramUser) string) bool {
	for _, admin := range admins {
		if r.msg.SendMessage(ctx, admin.ChatID, text(admin)) {
			return true
		}
		r.log.Debug().Int64("admin", admin.ChatID).Str("subscription_id", sub.ID).Msg("admin notice failed; trying next admin")
	}
	return false
}

// isolate runs the work for one subscription. A panic counts the item as
// failed and the batch moves on to the next one.
func (r *reconcilerUC) isolate(log *zerolog.Logger, job string, sub *model.Subscription, rep *RunReport, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			rep.Failed++
			log.Error().
				Str("job", job).
				Str("subscription_id", sub.ID).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("item panicked; skipped")
		}
	}()
	fn()
}

func (r *reconcilerUC) record(job string, rep RunReport) {
	metrics.AddJobItems(job, "scanned", rep.Scanned)
	metrics.AddJobItems(job, "transitioned", rep.Transitioned)
	metrics.AddJobItems(job, "notified", rep.Notified)
	metrics.AddJobItems(job, "failed", rep.Failed)
}
