package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/emerald-details/internal/api"
	"github.com/hackgods/emerald-details/internal/appointment"
	"github.com/hackgods/emerald-details/internal/auth"
	"github.com/hackgods/emerald-details/internal/booking"
	"github.com/hackgods/emerald-details/internal/catalog"
	"github.com/hackgods/emerald-details/internal/config"
	"github.com/hackgods/emerald-details/internal/db"
	"github.com/hackgods/emerald-details/internal/events"
	"github.com/hackgods/emerald-details/internal/geo"
	"github.com/hackgods/emerald-details/internal/logging"
	"github.com/hackgods/emerald-details/internal/messaging"
	"github.com/hackgods/emerald-details/internal/notify"
	"github.com/hackgods/emerald-details/internal/payment"
	redisclient "github.com/hackgods/emerald-details/internal/redis"
	"github.com/hackgods/emerald-details/internal/slot"
	"github.com/hackgods/emerald-details/internal/telemetry"
	"github.com/hackgods/emerald-details/internal/user"
	"github.com/hackgods/emerald-details/internal/vehicle"
)

const serviceName = "api-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(serviceName, cfg.Env)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", cfg.Version)

	if err := run(cfg, logger); err != nil {
		logger.Error("api-server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.FromConfig(serviceName, cfg))
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracer shutdown", "err", err)
		}
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

	if cfg.MigrateOnStart {
		if err := db.Migrate(rootCtx, pgPool, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Connect Redis
	rdb, err := redisclient.Connect(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "err", err)
		}
	}()
	logger.Info("connected to Redis")

	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()

	userRepo := user.NewPgRepository(pgPool)
	vehicles := vehicle.NewService(vehicle.NewPgRepository(pgPool))
	users := user.NewService(userRepo, vehicles)

	services := catalog.NewService(catalog.NewPgRepository(pgPool))
	if cfg.MigrateOnStart {
		if err := seedCatalog(rootCtx, services, cfg.CatalogFile, logger); err != nil {
			return err
		}
	}

	slots := slot.NewService(slot.NewPgRepository(pgPool), cfg.Location, logger)
	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		publisher,
		cfg,
		logger,
	)

	geocoder := geo.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})

	authSvc := auth.NewService(userRepo, auth.NewTokenIssuer(cfg.JWTSecret), newMailer(cfg, logger), auth.Config{
		TokenTTL:      cfg.TokenTTL,
		EmailTokenTTL: cfg.EmailTokenTTL,
		PublicURL:     cfg.PublicURL,
	}, logger)

	chat := messaging.NewService(messaging.NewPgRepository(pgPool), newChatBroker(cfg, rdb, logger), logger)

	payments := payment.NewService(payment.NewPgRepository(pgPool), newGateway(cfg, logger), appointments, userRepo, cfg.Currency, logger)

	checks := []api.Check{
		{Name: "postgres", Critical: true, Ping: pgPool.Ping},
		{Name: "redis", Critical: true, Ping: redisclient.ReadyCheck(rdb)},
	}
	if len(cfg.KafkaBrokers) > 0 {
		checks = append(checks, api.Check{Name: "kafka", Ping: events.ReadyCheck(cfg.KafkaBrokers)})
	}

	var limiter api.Limiter
	if cfg.RateLimitEnabled && cfg.RateLimitPerMin > 0 {
		limiter = redisclient.NewRateLimiter(rdb, cfg.RateLimitPerMin, time.Minute, "emerald:rl:auth")
	}

	router := api.NewRouter(api.RouterConfig{
		Auth:         authSvc,
		Users:        users,
		Vehicles:     vehicles,
		Catalog:      services,
		Slots:        slots,
		Appointments: appointments,
		Booking:      booking.NewFlow(services, vehicles, slots, geocoder, appointments),
		Messaging:    chat,
		Payments:     payments,
		Geocoder:     geocoder,
		AuthLimiter:  limiter,
		Health:       api.NewHealthHandler(cfg.Env, cfg.Version, checks...),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newPublisher falls back to a no-op when Kafka is not configured, so
// bookings never depend on the notification pipeline.
func newPublisher(cfg config.Config, logger *slog.Logger) (appointment.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, appointment events are dropped")
		return events.Noop{}, func() {}
	}
	p := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaEventsTopic, logger)
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn("error closing kafka writer", "err", err)
		}
	}
}

func newMailer(cfg config.Config, logger *slog.Logger) auth.Mailer {
	if cfg.SendGridAPIKey == "" || cfg.SendGridFromEmail == "" {
		logger.Warn("SendGrid not configured, emails are logged only")
		return notify.NoopMailer{Logger: logger}
	}
	return notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName)
}

func newGateway(cfg config.Config, logger *slog.Logger) payment.Gateway {
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, payments are disabled")
		return payment.DisabledGateway{}
	}
	return payment.NewStripeGateway(cfg.StripeSecretKey)
}

func newChatBroker(cfg config.Config, rdb *redis.Client, logger *slog.Logger) messaging.Broker {
	if cfg.ChatBroker == "memory" {
		return messaging.NewHub(logger)
	}
	return redisclient.NewPubSub(rdb, "emerald:chat")
}

func seedCatalog(ctx context.Context, services *catalog.Service, path string, logger *slog.Logger) error {
	packages, err := catalog.DefaultServices()
	if path != "" {
		packages, err = catalog.LoadCatalogFile(path)
	}
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	added, err := services.EnsureCatalog(ctx, packages)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if added > 0 {
		logger.Info("seeded service catalog", "added", added)
	}
	return nil
}
