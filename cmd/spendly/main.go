package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"spendly/internal/amqp"
	"spendly/internal/auth"
	"spendly/internal/cache"
	"spendly/internal/cli"
	"spendly/internal/config"
	"spendly/internal/core"
	apphttp "spendly/internal/http"
	"spendly/internal/log"
	"spendly/internal/metrics"
	"spendly/internal/receipt"
	"spendly/internal/services"
	"spendly/internal/stream"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	core.DefaultMonthlyBudget = cfg.Budget()

	store, err := cli.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	hub := stream.NewHub()

	// Publishing is optional: without a broker the spreadsheet export is off.
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = client
		logger.Info("Expense changes will be published", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	var federated services.FederatedProvider
	if cfg.GoogleOAuthEnabled() {
		federated = auth.NewGoogleProvider(cfg.GoogleOAuthClientID, cfg.GoogleOAuthClientSecret, cfg.GoogleOAuthRedirectURL)
		logger.Info("Google sign-in enabled")
	}

	expenses := services.NewExpenseService(store, hub, publisher, m, logger)
	profiles := services.NewProfileService(store, hub, logger)
	authSvc := services.NewAuthService(store, auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL), federated, logger)

	keyring := receipt.NewKeyring(cfg.GeminiAPIKey)
	credentials := receipt.NewCredentials(keyring, logger)
	extractor := receipt.NewGeminiExtractor(keyring, cfg.GeminiModel, logger)
	opts := []receipt.RecognizerOption{
		receipt.WithTimeout(cfg.RecognizeTimeout),
		receipt.WithObserver(func(outcome receipt.Outcome, elapsed time.Duration) {
			m.Recognition(string(outcome), elapsed)
		}),
	}
	if !cfg.ReceiptClearOnSuccess {
		opts = append(opts, receipt.KeepImageOnSuccess())
	}
	recognizer := receipt.NewRecognizer(extractor, credentials, logger, opts...)

	caches := cache.NewManager(logger)
	caches.Register("budgets", profiles.BudgetCache())
	caches.Register("gemini_clients", extractor.Clients())
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:              store,
		Expenses:           expenses,
		Profiles:           profiles,
		Auth:               authSvc,
		Hub:                hub,
		Drafts:             receipt.NewDrafts(cfg.ReceiptMaxBytes),
		Recognizer:         recognizer,
		Keyring:            keyring,
		Credentials:        credentials,
		Metrics:            m,
		Gatherer:           reg,
		Logger:             logger,
		Location:           cfg.Location(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxImageBytes:      cfg.ReceiptMaxBytes,
	})

	ctx, stop := cli.SignalContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting",
			"addr", srv.Addr,
			"backend", cfg.DataBackend,
			"timezone", cfg.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		logger.Info("Server stopped gracefully")
		return nil
	})
	return g.Wait()
}
