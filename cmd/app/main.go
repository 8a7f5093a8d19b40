// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/config"
	"telegram-private-group/internal/domain/ports/adapter"
	"telegram-private-group/internal/domain/ports/repository"
	"telegram-private-group/internal/infra/api"
	pg "telegram-private-group/internal/infra/db/postgres"
	"telegram-private-group/internal/infra/db/migrations"
	"telegram-private-group/internal/infra/i18n"
	"telegram-private-group/internal/infra/ledger"
	"telegram-private-group/internal/infra/logging"
	"telegram-private-group/internal/infra/metrics"
	red "telegram-private-group/internal/infra/redis"
	"telegram-private-group/internal/infra/sched"
	"telegram-private-group/internal/infra/telegram"
	"telegram-private-group/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	runJob := flag.String("run", "", "run one job (admission, expiration, reminder_Nd) and exit")

	cfg, err := config.LoadConfig()
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}

	// ---- Logging & metrics ----
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("timezone")
	}

	// ---- Postgres ----
	if cfg.Database.Migrate {
		if err := migrations.Up(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional) ----
	var locker adapter.JobLocker = red.NoopLocker{}
	var planRepo repository.PlanRepository = pg.NewPostgresPlanRepo(pool)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewJobLocker(redisClient, logger)
		planRepo = pg.NewPlanRepoCacheDecorator(planRepo, redisClient, cfg.Redis.TTL, logger)
	} else {
		logger.Warn().Msg("redis not configured; plan cache and job locks disabled")
	}

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Adapters ----
	validator, err := ledger.NewTronValidator(cfg.Ledger, loc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("ledger")
	}
	messenger, err := telegram.NewMessenger(cfg.Bot, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}
	composer, err := i18n.NewDefaultComposer(cfg.Notifier.AdminLang, cfg.Notifier.CustomerLang, cfg.Notifier, loc)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, txManager, logger)
	planUC := usecase.NewPlanUseCase(planRepo, logger)
	subUC := usecase.NewSubscriptionUseCase(userRepo, planUC, subRepo, validator, txManager, loc, logger)
	reconcilerUC := usecase.NewReconcilerUseCase(
		userRepo, subRepo, subUC, txManager, messenger, composer,
		usecase.ReminderOptions{PhotoPath: cfg.Notifier.ReminderPhoto},
		logger,
	)

	if len(cfg.Plans) > 0 {
		if err := planUC.Seed(ctx, cfg.PlanPrices()); err != nil {
			logger.Fatal().Err(err).Msg("seed plans")
		}
	}

	// ---- Scheduler ----
	scheduler := sched.New(loc, locker, cfg.Scheduler.RunTimeout, logger)
	for _, job := range sched.ReconcilerJobs(cfg.Scheduler, reconcilerUC, logger) {
		if err := scheduler.Add(job); err != nil {
			logger.Fatal().Err(err).Str("job", job.Name).Msg("schedule")
		}
	}

	if *runJob != "" {
		if err := scheduler.Trigger(ctx, *runJob); err != nil {
			logger.Fatal().Err(err).Str("job", *runJob).Msg("run job")
		}
		logger.Info().Str("job", *runJob).Msg("job finished")
		return
	}
	scheduler.Start(ctx)

	// ---- HTTP API ----
	apiServer := api.NewServer(userUC, subUC, planUC, pool.Ping, loc, cfg.HTTP, logger)
	server := api.NewHTTPServer(cfg.HTTP, apiServer.Routes())
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	// ---- Pool stats ----
	go reportPoolStats(ctx, pool, 15*time.Second)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("scheduler shutdown")
	}
	cancel()
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			metrics.SetDBPoolStats(pool.Stat())
		}
	}
}
