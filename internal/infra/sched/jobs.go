package sched

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-private-group/internal/config"
	"telegram-private-group/internal/usecase"
)

// ReconcilerJobs builds the schedule table: admission, expiration and one
// reminder job per configured window.
func ReconcilerJobs(cfg config.SchedulerConfig, r usecase.ReconcilerUseCase, logger *zerolog.Logger) []Job {
	report := func(name string, run func(ctx context.Context) (usecase.RunReport, error)) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			rep, err := run(ctx)
			if err != nil {
				return err
			}
			if rep.Scanned > 0 {
				logger.Info().Str("job", name).
					Int("scanned", rep.Scanned).
					Int("transitioned", rep.Transitioned).
					Int("notified", rep.Notified).
					Int("failed", rep.Failed).
					Msg("reconciler pass")
			}
			return nil
		}
	}

	jobs := []Job{
		{Name: "admission", Spec: cfg.AdmissionSpec, Run: report("admission", r.RunAdmission)},
		{Name: "expiration", Spec: cfg.ExpirationSpec, Run: report("expiration", r.RunExpiration)},
	}
	for _, days := range cfg.ReminderDays {
		days := days
		name := fmt.Sprintf("reminder_%dd", days)
		jobs = append(jobs, Job{
			Name: name,
			Spec: cfg.ReminderSpec,
			Run: report(name, func(ctx context.Context) (usecase.RunReport, error) {
				return r.RunReminders(ctx, days)
			}),
		})
	}
	return jobs
}
