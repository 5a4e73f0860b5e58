// PriceWaiter Bridge - receives PriceWaiter IPN notifications and REST
// orders for a WooCommerce store, and renders the analytics snippet.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pricewaiter-bridge/internal/analytics"
	"pricewaiter-bridge/internal/config"
	"pricewaiter-bridge/internal/events"
	"pricewaiter-bridge/internal/handler"
	"pricewaiter-bridge/internal/ipn"
	"pricewaiter-bridge/internal/mail"
	"pricewaiter-bridge/internal/metrics"
	"pricewaiter-bridge/internal/middleware"
	"pricewaiter-bridge/internal/orderwrite"
	"pricewaiter-bridge/internal/settings"
	"pricewaiter-bridge/internal/store"
	"pricewaiter-bridge/internal/store/postgres"
	"pricewaiter-bridge/internal/transport"
	"pricewaiter-bridge/internal/woocommerce"
)

const userAgent = "pricewaiter-bridge/1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	logger := initLogger()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Server.Environment),
		slog.String("store_name", cfg.Server.StoreName),
		slog.Bool("postgres", cfg.Database.DSN != ""),
		slog.Bool("kafka", len(cfg.Kafka.Brokers) > 0),
		slog.Bool("orderwrite", cfg.OrderWrite.Enabled),
	)

	st, settingsStore, err := openStores(cfg, logger)
	if err != nil {
		return err
	}

	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()
	mailer := mail.EventSender{Publisher: publisher}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	httpClient := transport.NewClient(transport.Options{
		Timeout:           cfg.IPN.VerifyTimeout,
		ChromeFingerprint: cfg.IPN.ChromeTransport,
		UserAgent:         userAgent,
	})

	hostVersion, err := newVersionSource(cfg, httpClient)
	if err != nil {
		return fmt.Errorf("creating host version source: %w", err)
	}

	receiver := ipn.NewReceiver(ipn.Deps{
		Settings:       settingsStore,
		Verifier:       ipn.NewHTTPVerifier(httpClient, cfg.IPN.VerifyEndpoint),
		Store:          st,
		HostVersion:    hostVersion,
		MaxHostVersion: cfg.IPN.MaxHostVersion,
		Publisher:      publisher,
		Mailer:         mailer,
		Metrics:        m,
		Logger:         logger,
	})

	var interceptors []orderwrite.Interceptor
	if cfg.OrderWrite.Enabled {
		corrector, err := orderwrite.NewTaxCorrector(cfg.OrderWrite.TaxRateID, settingsStore, m, logger)
		if err != nil {
			return fmt.Errorf("creating tax corrector: %w", err)
		}
		interceptors = append(interceptors, corrector)
	} else {
		logger.Warn("order write disabled, PriceWaiter REST orders will be refused")
	}
	orders := orderwrite.NewService(orderwrite.Deps{
		Store:        st,
		Interceptors: interceptors,
		Taxes:        cfg.OrderWrite.TaxRates,
		Publisher:    publisher,
		Mailer:       mailer,
		Metrics:      m,
		Logger:       logger,
	})

	h := handler.New(handler.Deps{
		Receiver:       receiver,
		Orders:         orders,
		Analytics:      analytics.NewEmitter(settingsStore, cfg.Server.StoreName, m, logger),
		Lookup:         st,
		Settings:       settingsStore,
		ManageURL:      cfg.Analytics.ManageURL,
		AdminToken:     cfg.Server.AdminToken,
		ConsumerKey:    cfg.WooCommerce.ConsumerKey,
		ConsumerSecret: cfg.WooCommerce.ConsumerSecret,
		Gatherer:       reg,
		Metrics:        m,
		Logger:         logger,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
	)(mux)

	// WriteTimeout covers the verify round trip, which may take VerifyTimeout.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.IPN.VerifyTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Server.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// openStores returns the Postgres store when a DSN is configured, the
// in-memory store otherwise.
func openStores(cfg *config.Config, logger *slog.Logger) (store.Store, settings.Store, error) {
	if cfg.Database.DSN == "" {
		logger.Warn("DATABASE_DSN not set, orders are kept in memory")
		return store.NewMemory(), settings.NewMemoryStore(settings.Defaults()), nil
	}

	db, err := postgres.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("migrations applied", slog.String("path", cfg.Database.MigrationsPath))
	}
	return postgres.NewRepository(db), postgres.NewSettingsRepository(db), nil
}

// newPublisher returns the Kafka publisher when brokers are configured.
// The returned func closes it.
func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.LogPublisher{Logger: logger}, func() {}
	}
	k := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.EmailTopic)
	return k, func() {
		if err := k.Close(); err != nil {
			logger.Error("closing kafka publisher", slog.String("error", err.Error()))
		}
	}
}

// newVersionSource pins the configured host version, or probes the
// WooCommerce store and caches the answer. With neither, the bridge is
// the store and IPN is always accepted.
func newVersionSource(cfg *config.Config, hc *http.Client) (ipn.VersionSource, error) {
	if cfg.Host.Version != "" {
		return ipn.StaticVersion(cfg.Host.Version), nil
	}
	if cfg.WooCommerce.StoreURL == "" {
		return ipn.StaticVersion(""), nil
	}
	client, err := woocommerce.New(woocommerce.Config{
		StoreURL:       cfg.WooCommerce.StoreURL,
		ConsumerKey:    cfg.WooCommerce.ConsumerKey,
		ConsumerSecret: cfg.WooCommerce.ConsumerSecret,
		HTTPClient:     hc,
	})
	if err != nil {
		return nil, err
	}
	return &ipn.CachedVersion{Source: client, TTL: cfg.Host.VersionTTL}, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
