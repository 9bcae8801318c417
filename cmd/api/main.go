package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vcard-gateway/config"
	httpHandler "vcard-gateway/internal/adapter/http/handler"
	"vcard-gateway/internal/adapter/provider"
	"vcard-gateway/internal/adapter/provider/cardissuer"
	"vcard-gateway/internal/adapter/provider/mobilemoney"
	"vcard-gateway/internal/adapter/provider/redirectorder"
	pgStorage "vcard-gateway/internal/adapter/storage/postgres"
	redisStorage "vcard-gateway/internal/adapter/storage/redis"
	"vcard-gateway/internal/core/ports"
	"vcard-gateway/internal/service"
	"vcard-gateway/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting virtual card gateway")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	cardRepo := pgStorage.NewCardRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Database.LockTimeout)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	pollGuard := redisStorage.NewPollGuard(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize security services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService(service.DefaultArgon2Params())
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize provider adapters
	momo := mobilemoney.New(mobilemoney.Config{
		BaseURL:     cfg.MobileMoney.BaseURL,
		APIKey:      cfg.MobileMoney.APIKey,
		APISecret:   cfg.MobileMoney.APISecret,
		NotifyPhone: cfg.MobileMoney.NotifyPhone,
		NotifyEmail: cfg.MobileMoney.NotifyEmail,
	}, provider.NewHTTPClient(cfg.MobileMoney.Timeout), logger.Component(log, "mobile_money"))
	defer momo.Close()

	redirect := redirectorder.New(redirectorder.Config{
		BaseURL:         cfg.RedirectOrder.BaseURL,
		ConsumerKey:     cfg.RedirectOrder.ConsumerKey,
		ConsumerSecret:  cfg.RedirectOrder.ConsumerSecret,
		ReturnURL:       cfg.RedirectOrder.ReturnURL,
		NotificationURL: cfg.RedirectOrder.NotificationURL,
		Lang:            cfg.RedirectOrder.Lang,
	}, provider.NewHTTPClient(cfg.RedirectOrder.Timeout), logger.Component(log, "redirect_order"))
	defer redirect.Close()

	issuer := cardissuer.New(cardissuer.Config{
		BaseURL: cfg.CardIssuer.BaseURL,
		APIKey:  cfg.CardIssuer.APIKey,
	}, provider.NewHTTPClient(cfg.CardIssuer.Timeout), logger.Component(log, "card_issuer"))
	defer issuer.Close()

	// Initialize business services
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc)
	paymentSvc := service.NewPaymentService(
		[]ports.PaymentProvider{momo, redirect},
		txRepo,
		cardRepo,
		userRepo,
		transactor,
		idempotencyCache,
		pollGuard,
		service.PaymentConfig{
			Currency:        cfg.Payments.Currency,
			MaxAmount:       decimal.NewFromFloat(cfg.Payments.MaxAmount),
			ProviderTimeout: cfg.Payments.ProviderTimeout,
			PollInterval:    cfg.Payments.PollInterval,
			IdempotencyTTL:  cfg.Payments.IdempotencyTTL,
		},
		logger.Component(log, "payments"),
	)
	webhookSvc := service.NewWebhookService(txRepo, paymentSvc, logger.Component(log, "webhooks"))
	cardSvc := service.NewCardService(cardRepo, txRepo, issuer, encSvc, transactor, service.CardConfig{
		Currency:      cfg.Payments.Currency,
		IssuerTimeout: cfg.CardIssuer.Timeout,
	}, logger.Component(log, "cards"))
	transactionSvc := service.NewTransactionService(txRepo, cardRepo)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	// Reconciler for payments whose webhook never arrived
	reconciler := service.NewReconciler(paymentSvc, service.ReconcilerConfig{
		Interval:  cfg.Reconciler.Interval,
		MinAge:    cfg.Reconciler.MinAge,
		BatchSize: cfg.Reconciler.BatchSize,
	}, logger.Component(log, "reconciler"))
	if cfg.Reconciler.Enabled {
		reconciler.Start(ctx)
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		PaymentSvc:     paymentSvc,
		WebhookSvc:     webhookSvc,
		CardSvc:        cardSvc,
		TransactionSvc: transactionSvc,
		TokenSvc:       tokenSvc,
		SigSvc:         sigSvc,
		AuditSvc:       auditSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{
			pgStorage.NewSchemaCheck(pool),
			redisStorage.NewChecker(rdb),
			issuer,
		},
		MobileMoneyWebhookSecret:   cfg.MobileMoney.WebhookSecret,
		RedirectOrderWebhookSecret: cfg.RedirectOrder.ConsumerSecret,
		Logger:                     log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Deferred closes then run in reverse: adapters, redis, pool.
	reconciler.Stop()

	log.Info().Msg("Server exited")
}
