package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/emerald-details/internal/config"
	"github.com/hackgods/emerald-details/internal/db"
	"github.com/hackgods/emerald-details/internal/events"
	"github.com/hackgods/emerald-details/internal/logging"
	"github.com/hackgods/emerald-details/internal/notify"
	"github.com/hackgods/emerald-details/internal/telemetry"
	"github.com/hackgods/emerald-details/internal/user"
)

const serviceName = "notifier"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(serviceName, cfg.Env)
	if err := run(cfg, logger); err != nil {
		logger.Error("notifier stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	logger.Info("notifier starting up", "topic", cfg.KafkaEventsTopic, "group", cfg.KafkaGroupID)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.FromConfig(serviceName, cfg))
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	notifier := notify.NewNotifier(user.NewPgRepository(pgPool), newSMS(cfg, logger), newMailer(cfg, logger), cfg.Location, logger)

	consumer := events.NewConsumer(events.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topic:   cfg.KafkaEventsTopic,
	}, events.NewPgInbox(pgPool), notifier.Handle, logger)

	err = consumer.Run(rootCtx)
	logger.Info("shutting down notifier")
	return err
}

func newSMS(cfg config.Config, logger *slog.Logger) notify.SMSSender {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		logger.Warn("Twilio not configured, SMS are logged only")
		return notify.NoopSMS{Logger: logger}
	}
	return notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
}

func newMailer(cfg config.Config, logger *slog.Logger) notify.Mailer {
	if cfg.SendGridAPIKey == "" || cfg.SendGridFromEmail == "" {
		logger.Warn("SendGrid not configured, emails are logged only")
		return notify.NoopMailer{Logger: logger}
	}
	return notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName)
}
