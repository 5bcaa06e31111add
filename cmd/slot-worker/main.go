package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hackgods/emerald-details/internal/config"
	"github.com/hackgods/emerald-details/internal/db"
	"github.com/hackgods/emerald-details/internal/logging"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("slot-worker", cfg.Env)
	logger.Info("slot-worker starting up", "env", cfg.Env, "schedule", cfg.SlotCron, "horizon_days", cfg.SlotHorizonDays)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	svc := slot.NewService(slot.NewPgRepository(pgPool), cfg.Location, logger)
	users := user.NewPgRepository(pgPool)

	// Run once at startup so a fresh deploy has bookable days immediately.
	runOnce(rootCtx, svc, users, cfg.SlotHorizonDays, logger)

	c := cron.New(cron.WithLocation(cfg.Location))
	if _, err := c.AddFunc(cfg.SlotCron, func() {
		runOnce(rootCtx, svc, users, cfg.SlotHorizonDays, logger)
	}); err != nil {
		logger.Error("invalid SLOT_CRON", "schedule", cfg.SlotCron, "err", err)
		return
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info("shutdown signal received, stopping slot worker")
	<-c.Stop().Done()
}

// runOnce fills today through today+horizonDays. Days that already have
// slots are kept, so repeated runs only add the new trailing days.
func runOnce(ctx context.Context, svc *slot.Service, users user.Repository, horizonDays int, logger *slog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := time.Now()
	staff, err := detailers(runCtx, users)
	if err != nil {
		logger.Error("loading detailers failed", "err", err)
		return
	}

	created, err := svc.FillHorizon(runCtx, start, horizonDays, staff)
	if err != nil {
		logger.Error("slot generation failed", "err", err, "created", created)
		return
	}
	logger.Info("slot generation complete", "created", created, "took", time.Since(start))
}

// detailers lists available employees in the repository's name order, the
// same rotation cmd/seed uses.
func detailers(ctx context.Context, users user.Repository) ([]slot.Employee, error) {
	employees, err := users.ListByRole(ctx, user.RoleEmployee)
	if err != nil {
		return nil, err
	}
	staff := make([]slot.Employee, 0, len(employees))
	for _, e := range employees {
		if e.Available {
			staff = append(staff, slot.Employee{ID: e.ID, Name: e.Name})
		}
	}
	return staff, nil
}
