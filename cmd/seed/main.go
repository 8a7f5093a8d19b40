package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-private-group/internal/config"
	pg "telegram-private-group/internal/infra/db/postgres"
	"telegram-private-group/internal/infra/db/migrations"
	"telegram-private-group/internal/usecase"
)

func main() {
	admins := flag.String("admins", "", "comma separated usernames to grant the admin role")

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := zerolog.Nop()

	if cfg.Database.Migrate {
		if err := migrations.Up(cfg.Database.URL); err != nil {
			log.Fatalf("migrations: %v", err)
		}
	}

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planUC := usecase.NewPlanUseCase(pg.NewPostgresPlanRepo(pool), &logger)
	userUC := usecase.NewUserUseCase(pg.NewPostgresUserRepo(pool), pg.NewTxManager(pool), &logger)

	if len(cfg.Plans) == 0 {
		fmt.Println("no plans in config; catalog unchanged")
	} else if err := planUC.Seed(ctx, cfg.PlanPrices()); err != nil {
		log.Fatalf("seed plans: %v", err)
	}

	for _, name := range strings.Split(*admins, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := userUC.SetAdmin(ctx, name, true); err != nil {
			log.Fatalf("grant admin %q: %v", name, err)
		}
		fmt.Printf("admin: %s\n", name)
	}

	plans, err := planUC.List(ctx)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	for _, p := range plans {
		fmt.Printf("  - %s (days=%d, price=%d USDT)\n", p.Period, p.Period.Days(), p.Price)
	}
	fmt.Println("✅ Seeding complete.")
}
