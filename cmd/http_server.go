package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/notification"
	"github.com/frahmantamala/upi-payments/internal/order"
	"github.com/frahmantamala/upi-payments/internal/submission"
	"github.com/frahmantamala/upi-payments/internal/transport/rest"
	"github.com/frahmantamala/upi-payments/internal/transport/swagger"
	"github.com/frahmantamala/upi-payments/internal/upiconfig"
	"github.com/frahmantamala/upi-payments/internal/user"
	"github.com/frahmantamala/upi-payments/pkg/logger"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests. The expiry sweep runs in the same process unless sweep.enabled is false.`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	lg := logger.LoggerWrapper()

	ctx := context.Background()
	app, err := buildApp(ctx, cfg, lg)
	if err != nil {
		fatal("failed to initialize dependencies", err)
	}

	router := chi.NewRouter()
	router.NotFound(rest.NotFound)
	rest.RegisterAllRoutes(router, buildHandlers(ctx, app), rest.Options{
		AllowedOrigins: cfg.Server.Origins(),
		LogRequests:    true,
	}, lg)

	if cfg.Sweep.Enabled {
		if err := app.Scheduler.Start(); err != nil {
			app.Close()
			fatal("failed to start expiry sweep", err)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown error", "error", err)
	}
	if cfg.Sweep.Enabled {
		app.Scheduler.Stop(shutdownCtx)
	}
	app.Drain(shutdownCtx)

	lg.Info("server stopped")
}

func buildHandlers(ctx context.Context, app *App) rest.Handlers {
	h := rest.Handlers{
		Auth:         auth.NewHandler(app.Auth),
		User:         user.NewHandler(app.Users),
		Order:        order.NewHandler(app.Orders),
		Submission:   submission.NewHandler(app.Submissions, app.Config.Submission.MaxFileSize),
		Notification: notification.NewHandler(app.Notifications),
		UPIConfig:    upiconfig.NewHandler(app.UPIConfig),
		RBAC:         auth.NewRBACAuthorization(app.Checker, app.Logger),
		Health:       rest.NewHealthHandler(healthChecks(app)...),
	}

	doc, err := swagger.Load(ctx, app.Config.Server.OpenAPIPath)
	if err != nil {
		app.Logger.Warn("openapi document not served", "path", app.Config.Server.OpenAPIPath, "error", err)
	} else {
		h.OpenAPI = doc
	}
	return h
}

func healthChecks(app *App) []rest.HealthCheck {
	checks := []rest.HealthCheck{
		{Name: "postgres", Check: app.DB.PingContext},
		{Name: "storage", Check: app.Store.Ping},
	}
	if app.Redis != nil {
		checks = append(checks, rest.HealthCheck{Name: "redis", Optional: true, Check: app.Redis.Ping})
	}
	if app.OCR != nil {
		// submissions still succeed without OCR, they just wait for manual review
		checks = append(checks, rest.HealthCheck{Name: "ocr", Optional: true, Check: app.OCR.HealthCheck})
	}
	return checks
}
