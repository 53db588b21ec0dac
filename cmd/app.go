package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	authPostgres "github.com/frahmantamala/upi-payments/internal/auth/postgres"
	"github.com/frahmantamala/upi-payments/internal/cache"
	"github.com/frahmantamala/upi-payments/internal/core/events"
	"github.com/frahmantamala/upi-payments/internal/intake"
	"github.com/frahmantamala/upi-payments/internal/notification"
	notificationPostgres "github.com/frahmantamala/upi-payments/internal/notification/postgres"
	"github.com/frahmantamala/upi-payments/internal/ocr"
	"github.com/frahmantamala/upi-payments/internal/order"
	orderPostgres "github.com/frahmantamala/upi-payments/internal/order/postgres"
	"github.com/frahmantamala/upi-payments/internal/scheduler"
	"github.com/frahmantamala/upi-payments/internal/storage"
	"github.com/frahmantamala/upi-payments/internal/submission"
	submissionPostgres "github.com/frahmantamala/upi-payments/internal/submission/postgres"
	"github.com/frahmantamala/upi-payments/internal/upiconfig"
	upiconfigPostgres "github.com/frahmantamala/upi-payments/internal/upiconfig/postgres"
	"github.com/frahmantamala/upi-payments/internal/user"
	userPostgres "github.com/frahmantamala/upi-payments/internal/user/postgres"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// App holds the wired services shared by the server and worker commands.
type App struct {
	Config *internal.Config
	Logger *slog.Logger

	DB    *sqlx.DB
	Gorm  *gorm.DB
	Cache cache.Cache
	Redis *cache.RedisCache
	Store storage.Storage
	OCR   *ocr.Client
	Bus   *events.EventBus

	Checker       *auth.DefaultPermissionChecker
	Auth          *auth.Service
	Users         *user.Service
	Orders        *order.Service
	Submissions   *submission.Service
	Notifications *notification.Service
	UPIConfig     *upiconfig.Service
	Scheduler     *scheduler.Scheduler
}

func buildApp(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	app.DB = db

	gdb, err := initGorm(db, cfg.Observability.Logging.Level)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Gorm = gdb

	app.Cache = cache.NoopCache{}
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			// the database stays authoritative, so redis is optional
			logger.Warn("redis unavailable, continuing without cache", "error", err)
		} else {
			app.Redis = rc
			app.Cache = rc
		}
	}

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.Store = store

	var extractor ocr.Extractor = ocr.DisabledExtractor{}
	if cfg.OCR.Enabled && cfg.OCR.BaseURL != "" {
		app.OCR = ocr.NewClient(cfg.OCR.BaseURL, cfg.OCR.Timeout, store, logger)
		extractor = app.OCR
	} else {
		logger.Warn("ocr disabled, every submission goes to manual review")
	}

	app.Bus = events.NewEventBus(logger)
	app.Checker = auth.NewPermissionChecker()
	policy := auth.NewABACPolicy(app.Checker)

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	app.Auth = auth.NewService(authPostgres.NewRepository(gdb), tokens, cfg.Security.BCryptCost)
	app.Users = user.NewService(userPostgres.NewRepository(gdb))
	app.Orders = order.NewService(orderPostgres.NewOrderRepository(gdb), policy, logger)

	intakeSvc := intake.NewService(app.Orders, policy, store, intake.Config{
		MaxFileSize: cfg.Submission.MaxFileSize,
		KeyPrefix:   cfg.Storage.KeyPrefix,
	}, logger)

	app.Submissions = submission.NewService(
		submissionPostgres.NewSubmissionRepository(gdb),
		intakeSvc,
		extractor,
		app.Orders,
		policy,
		submission.Config{
			MaxAttempts:          cfg.Submission.MaxAttempts,
			ValidityWindow:       cfg.Submission.ValidityWindow,
			AutoVerifyConfidence: cfg.Submission.AutoVerifyConfidence,
			StatusCacheTTL:       cfg.Submission.StatusCacheTTL,
			SweepBatchSize:       cfg.Sweep.BatchSize,
		},
		logger,
	).
		WithCache(app.Cache).
		WithPublisher(app.Bus).
		WithScreenshotLinker(store)

	app.Notifications = notification.NewService(notificationPostgres.NewRepository(db), logger)
	notification.NewEventHandler(app.Notifications, app.Orders, logger).Register(app.Bus)

	app.UPIConfig = upiconfig.NewService(upiconfigPostgres.NewConfigRepository(gdb), logger)

	app.Scheduler = scheduler.New(app.Submissions, app.Cache, scheduler.Config{
		Schedule: cfg.Sweep.Schedule,
		Timeout:  cfg.Sweep.Timeout,
	}, logger)

	return app, nil
}

// Drain waits for event handlers still running, then closes connections.
func (a *App) Drain(ctx context.Context) {
	if a.Bus != nil {
		if err := a.Bus.Wait(ctx); err != nil {
			a.Logger.Warn("event handlers still running at shutdown", "error", err)
		}
	}
	a.Close()
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("redis close error", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("database close error", "error", err)
		}
	}
}
