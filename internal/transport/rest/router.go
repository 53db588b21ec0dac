package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/notification"
	"github.com/frahmantamala/upi-payments/internal/order"
	"github.com/frahmantamala/upi-payments/internal/submission"
	"github.com/frahmantamala/upi-payments/internal/transport/middleware"
	"github.com/frahmantamala/upi-payments/internal/transport/swagger"
	"github.com/frahmantamala/upi-payments/internal/upiconfig"
	"github.com/frahmantamala/upi-payments/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups everything the router mounts. A nil handler leaves its
// routes out.
type Handlers struct {
	Auth         *auth.Handler
	User         *user.Handler
	Order        *order.Handler
	Submission   *submission.Handler
	Notification *notification.Handler
	UPIConfig    *upiconfig.Handler
	Health       *HealthHandler
	RBAC         *auth.RBACAuthorization
	OpenAPI      *swagger.Document
}

type Options struct {
	AllowedOrigins []string
	LogRequests    bool
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts Options, logger *slog.Logger) {
	submitter := middleware.RequireAnyPermission(logger, auth.PermissionSubmitPayments, auth.PermissionAdmin)
	if h.RBAC == nil {
		h.RBAC = auth.NewRBACAuthorization(auth.NewPermissionChecker(), logger)
	}
	verifier := h.RBAC.RequireVerifyPayments()

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(logger))
	if opts.LogRequests {
		router.Use(middleware.LoggingMiddleware(logger))
	}

	if h.OpenAPI != nil {
		router.Get(swagger.DocumentURL, h.OpenAPI.ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		if h.UPIConfig != nil {
			r.Get("/upi/config", h.UPIConfig.GetConfig)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
			}

			if h.Order != nil {
				pr.Get("/orders", h.Order.ListOrders)
				pr.Get("/orders/{id}", h.Order.GetOrder)
			}

			if h.Submission != nil {
				pr.Get("/payments/status", h.Submission.GetStatus)
				pr.Route("/upi-payments", func(sr chi.Router) {
					sr.With(submitter).Post("/upload", h.Submission.UploadScreenshot)
					sr.With(submitter).Post("/resubmit", h.Submission.ResubmitScreenshot)
					sr.Get("/status/{orderId}", h.Submission.GetStatus)
					sr.Get("/history", h.Submission.GetHistory)

					sr.Group(func(ar chi.Router) {
						ar.Use(verifier)
						ar.Get("/pending", h.Submission.ListPending)
						ar.Post("/{id}/verify", h.Submission.VerifyPayment)
					})
				})
				pr.With(verifier).Post("/orders/{id}/verify-payment", h.Submission.VerifyOrderPayment)
			}

			if h.Notification != nil {
				pr.Get("/notifications", h.Notification.ListNotifications)
				pr.Patch("/notifications/{id}/read", h.Notification.MarkRead)
			}

			if h.UPIConfig != nil {
				pr.With(h.RBAC.RequireManageUPIConfig()).Put("/upi/admin/config", h.UPIConfig.UpdateConfig)
			}
		})
	})
}

// NotFound answers unknown routes with the JSON envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"success":false,"error":{"type":"NOT_FOUND","code":"NOT_FOUND","message":"route not found"}}`))
}
