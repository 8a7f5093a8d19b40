//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-private-group/internal/domain"
	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/domain/ports/repository"
)

type fixture struct {
	users *PostgresUserRepo
	plans *PostgresPlanRepo
	subs  *subscriptionRepo
	tm    *TxManager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cleanup(t)
	f := fixture{
		users: NewPostgresUserRepo(testPool),
		plans: NewPostgresPlanRepo(testPool),
		subs:  NewSubscriptionRepo(testPool),
		tm:    NewTxManager(testPool),
	}
	ctx := context.Background()
	for _, p := range []*model.Plan{{Period: model.PeriodTwoDays, Price: 19}, {Period: model.PeriodOneMonth, Price: 99}} {
		require.NoError(t, f.plans.Upsert(ctx, repository.NoTX, p))
	}
	return f
}

func (f fixture) user(t *testing.T, chatID int64, username string, admin bool) *model.TelegramUser {
	t.Helper()
	u, err := model.NewTelegramUser(chatID, username, "First", "Last")
	require.NoError(t, err)
	u.IsAdmin = admin
	require.NoError(t, f.users.Save(context.Background(), repository.NoTX, u))
	return u
}

func (f fixture) subscription(t *testing.T, chatID int64, period model.Period, hash string, start time.Time) *model.Subscription {
	t.Helper()
	plan, err := f.plans.FindByPeriod(context.Background(), repository.NoTX, period)
	require.NoError(t, err)
	sub, err := model.NewSubscription(chatID, plan, hash, start)
	require.NoError(t, err)
	require.NoError(t, f.subs.Save(context.Background(), repository.NoTX, sub))
	return sub
}

func TestUserRepo_Integration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("should create and read a user", func(t *testing.T) {
		f.user(t, 100, "alice", false)

		byName, err := f.users.FindByUsername(ctx, repository.NoTX, "@alice")
		require.NoError(t, err)
		assert.Equal(t, int64(100), byName.ChatID)
		assert.False(t, byName.InPrivateGroup)

		byID, err := f.users.FindByChatID(ctx, repository.NoTX, 100)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
	})

	t.Run("should reject a taken username", func(t *testing.T) {
		u, _ := model.NewTelegramUser(101, "alice", "", "")
		err := f.users.Save(ctx, repository.NoTX, u)
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists), "got %v", err)
	})

	t.Run("should refuse to overwrite an existing chat id on create", func(t *testing.T) {
		u, _ := model.NewTelegramUser(100, "mallory", "Mallory", "")
		err := f.users.Create(ctx, repository.NoTX, u)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		kept, err := f.users.FindByChatID(ctx, repository.NoTX, 100)
		require.NoError(t, err)
		assert.Equal(t, "alice", kept.Username)
		assert.Equal(t, "First", kept.FirstName)
	})

	t.Run("should refuse a taken username on create", func(t *testing.T) {
		u, _ := model.NewTelegramUser(102, "@alice", "", "")
		assert.ErrorIs(t, f.users.Create(ctx, repository.NoTX, u), domain.ErrAlreadyExists)
	})

	t.Run("should return ErrNotFound for unknown user", func(t *testing.T) {
		_, err := f.users.FindByUsername(ctx, repository.NoTX, "nobody")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("should list only admins", func(t *testing.T) {
		f.user(t, 1, "boss", true)
		admins, err := f.users.ListAdmins(ctx, repository.NoTX)
		require.NoError(t, err)
		require.Len(t, admins, 1)
		assert.Equal(t, "boss", admins[0].Username)
	})
}

func TestSubscriptionRepo_Integration(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("should persist end = start + duration", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, 100, "alice", false)
		f.subscription(t, 100, model.PeriodTwoDays, "abc", start)

		got, err := f.subs.FindByCustomer(ctx, repository.NoTX, 100, false)
		require.NoError(t, err)
		assert.True(t, got.EndAt.Equal(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, int64(19), got.Plan.Price)
		require.NotNil(t, got.Customer)
		assert.Equal(t, "alice", got.Customer.Username)
	})

	t.Run("should reject a transaction hash used by another customer", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, 100, "alice", false)
		f.user(t, 200, "bob", false)
		f.subscription(t, 100, model.PeriodTwoDays, "abc", start)

		plan, _ := model.NewPlan(model.PeriodOneMonth, 99)
		sub, _ := model.NewSubscription(200, plan, "abc", start)
		err := f.subs.Save(ctx, repository.NoTX, sub)
		assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)

		exists, err := f.subs.ExistsByTxHash(ctx, repository.NoTX, "abc")
		require.NoError(t, err)
		assert.True(t, exists)
		_, err = f.subs.FindByCustomer(ctx, repository.NoTX, 200, false)
		assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	})

	t.Run("should flip admission flag exactly once", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, 100, "alice", false)
		sub := f.subscription(t, 100, model.PeriodTwoDays, "abc", time.Now())

		pending, err := f.subs.ListPendingAdmission(ctx, repository.NoTX)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		changed, err := f.users.MarkAdmitted(ctx, repository.NoTX, sub.ID)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = f.users.MarkAdmitted(ctx, repository.NoTX, sub.ID)
		require.NoError(t, err)
		assert.False(t, changed, "second flip must be a no-op")

		pending, err = f.subs.ListPendingAdmission(ctx, repository.NoTX)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("should delete expired record and clear flag in one transaction", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, 100, "alice", false)
		sub := f.subscription(t, 100, model.PeriodTwoDays, "abc", time.Now().Add(-72*time.Hour))
		_, err := f.users.MarkAdmitted(ctx, repository.NoTX, sub.ID)
		require.NoError(t, err)

		expired, err := f.subs.ListExpired(ctx, repository.NoTX, time.Now())
		require.NoError(t, err)
		require.Len(t, expired, 1)

		err = f.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			deleted, err := f.subs.DeleteExpired(ctx, tx, sub.ID, time.Now())
			if err != nil || !deleted {
				return errors.New("expected delete")
			}
			return f.users.ClearMembership(ctx, tx, sub.CustomerID)
		})
		require.NoError(t, err)

		deleted, err := f.subs.DeleteExpired(ctx, repository.NoTX, sub.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, deleted, "second delete must be a no-op")

		u, err := f.users.FindByChatID(ctx, repository.NoTX, 100)
		require.NoError(t, err)
		assert.False(t, u.InPrivateGroup)
	})

	t.Run("should not delete a subscription that is still valid", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, 100, "alice", false)
		sub := f.subscription(t, 100, model.PeriodOneMonth, "abc", time.Now())

		deleted, err := f.subs.DeleteExpired(ctx, repository.NoTX, sub.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("should list subscriptions ending at or after a point", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, 100, "alice", false)
		f.user(t, 200, "bob", false)
		now := time.Now()
		f.subscription(t, 100, model.PeriodTwoDays, "short", now)
		f.subscription(t, 200, model.PeriodOneMonth, "long", now)

		got, err := f.subs.ListEndingAfter(ctx, repository.NoTX, now.Add(7*24*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "long", got[0].TxHash)
	})

	t.Run("rolled back transaction leaves no trace", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, 100, "alice", false)
		plan, _ := model.NewPlan(model.PeriodTwoDays, 19)

		err := f.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			sub, _ := model.NewSubscription(100, plan, "rollback", start)
			if err := f.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.Error(t, err)

		exists, err := f.subs.ExistsByTxHash(ctx, repository.NoTX, "rollback")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestPlanRepo_Integration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("should allow price change while unreferenced", func(t *testing.T) {
		require.NoError(t, f.plans.Upsert(ctx, repository.NoTX, &model.Plan{Period: model.PeriodTwoDays, Price: 25}))
		p, err := f.plans.FindByPeriod(ctx, repository.NoTX, model.PeriodTwoDays)
		require.NoError(t, err)
		assert.Equal(t, int64(25), p.Price)
	})

	t.Run("should refuse price change once referenced", func(t *testing.T) {
		f.user(t, 100, "alice", false)
		f.subscription(t, 100, model.PeriodOneMonth, "abc", time.Now())

		err := f.plans.Upsert(ctx, repository.NoTX, &model.Plan{Period: model.PeriodOneMonth, Price: 120})
		assert.ErrorIs(t, err, domain.ErrPlanInUse)

		// same price is accepted
		assert.NoError(t, f.plans.Upsert(ctx, repository.NoTX, &model.Plan{Period: model.PeriodOneMonth, Price: 99}))
	})

	t.Run("should return ErrNotFound for missing plan", func(t *testing.T) {
		_, err := f.plans.FindByPeriod(ctx, repository.NoTX, model.PeriodOneYear)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("should list plans", func(t *testing.T) {
		plans, err := f.plans.List(ctx, repository.NoTX)
		require.NoError(t, err)
		assert.Len(t, plans, 2)
	})
}
