package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/peer-transfers/internal/auth"
	"github.com/riteshkumar/peer-transfers/internal/cache"
	"github.com/riteshkumar/peer-transfers/internal/config"
	"github.com/riteshkumar/peer-transfers/internal/database"
	"github.com/riteshkumar/peer-transfers/internal/handler"
	"github.com/riteshkumar/peer-transfers/internal/lock"
	"github.com/riteshkumar/peer-transfers/internal/middleware"
	"github.com/riteshkumar/peer-transfers/internal/repository"
	"github.com/riteshkumar/peer-transfers/internal/service"
)

func main() {
	// Amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	// Initialise logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.UsesDevSecrets() {
		logger.Warn("using development token secrets; set ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET")
	}

	// Connect to the database
	db, err := database.Connect(context.Background(), cfg.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database successfully")

	if cfg.DBAutoMigrate {
		if err := database.Migrate(db, logger); err != nil {
			logger.Error("failed to migrate database", "error", err.Error())
			os.Exit(1)
		}
	}

	// Initialise repo
	transactor := repository.NewTransactor(db)
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Redis backs the account cache and the settlement lock when configured
	var accountCache service.AccountCache = cache.NoopAccountCache{}
	var locker service.Locker = lock.NoopLocker{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err.Error())
			os.Exit(1)
		}
		logger.Info("connected to redis successfully", "addr", cfg.RedisAddr)

		accountCache = cache.NewRedisAccountCache(rdb, cfg.AccountCacheTTL, logger)
		locker = lock.NewRedisLocker(rdb, lock.OptionsFor(cfg.SettlementTimeout), logger)
	} else {
		logger.Info("REDIS_ADDR not set; account cache and distributed settlement lock disabled")
	}

	tokens := auth.NewTokenManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Initialise services
	accountService := service.NewAccountService(accountRepo, auditRepo, accountCache, cfg.CommissionAccountID, logger)
	authService := service.NewAuthService(accountRepo, tokens, logger)
	transactionService := service.NewTransactionService(
		transactor,
		accountRepo,
		transactionRepo,
		auditRepo,
		accountCache,
		locker,
		service.TransactionServiceConfig{
			CommissionAccountID: cfg.CommissionAccountID,
			SettlementTimeout:   cfg.SettlementTimeout,
		},
		logger,
	)

	// Commission is credited to this account on every approval; refuse to
	// start without it
	if _, err := accountService.EnsureCommissionAccount(context.Background(), cfg.AdminName, cfg.AdminPassword); err != nil {
		logger.Error("commission account unavailable", "account_id", cfg.CommissionAccountID, "error", err.Error())
		os.Exit(1)
	}

	// Initialise handlers
	userHandler := handler.NewUserHandler(accountService, authService, handler.CookieOptions{
		Secure:     cfg.CookieSecure,
		AccessTTL:  int(cfg.AccessTokenTTL.Seconds()),
		RefreshTTL: int(cfg.RefreshTokenTTL.Seconds()),
	}, logger)
	accountHandler := handler.NewAccountHandler(accountService, logger)
	transactionHandler := handler.NewTransactionHandler(transactionService, logger)

	// Setup router
	router := mux.NewRouter()
	authn := middleware.Authenticate(tokens, logger)

	// Register routes
	api := router.PathPrefix("/api").Subrouter()
	userHandler.RegisterRoutes(api, authn)
	accountHandler.RegisterRoutes(api, authn)
	transactionHandler.RegisterRoutes(api, authn)

	// Add health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Add middleware for logging
	router.Use(middleware.Logging(logger))

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a go routine
	go func() {
		logger.Info("starting server on port " + cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err.Error())
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err.Error())
	}

	logger.Info("server exited gracefully")
}
