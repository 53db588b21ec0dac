package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/transport"
)

type PermissionAuthorizer interface {
	HasPermission(ctx context.Context, userPermissions []string, permission string) (bool, error)
	CanVerifyPaymentsCtx(ctx context.Context, userPermissions []string) (bool, error)
	CanManageUPIConfigCtx(ctx context.Context, userPermissions []string) (bool, error)
	IsAdminCtx(ctx context.Context, userPermissions []string) (bool, error)
}

type RBACAuthorization struct {
	*transport.BaseHandler
	authorizer PermissionAuthorizer
	logger     *slog.Logger
}

func NewRBACAuthorization(authorizer PermissionAuthorizer, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		authorizer:  authorizer,
		logger:      logger,
	}
}

type authorizeFunc func(ctx context.Context, userPermissions []string) (bool, error)

func (ra *RBACAuthorization) require(name string, check authorizeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || user == nil {
				ra.logger.Warn("authorization check failed: user not found in context", "check", name)
				ra.HandleServiceError(w, internal.ErrMissingToken)
				return
			}

			allowed, err := check(r.Context(), user.Permissions)
			if err != nil {
				ra.logger.ErrorContext(r.Context(), "authorization check failed", "check", name, "error", err, "user_id", user.ID)
				ra.HandleServiceError(w, internal.NewInternalError("authorization check failed", err))
				return
			}

			if !allowed {
				ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
					"check", name,
					"user_id", user.ID,
					"user_permissions", user.Permissions)
				ra.HandleServiceError(w, internal.NewForbiddenError("insufficient permissions", internal.ErrCodeUnauthorizedAccess))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) Middleware(permission string) func(http.Handler) http.Handler {
	return ra.require(permission, func(ctx context.Context, perms []string) (bool, error) {
		return ra.authorizer.HasPermission(ctx, perms, permission)
	})
}

func (ra *RBACAuthorization) RequireVerifyPayments() func(http.Handler) http.Handler {
	return ra.require("verify_payments", ra.authorizer.CanVerifyPaymentsCtx)
}

func (ra *RBACAuthorization) RequireManageUPIConfig() func(http.Handler) http.Handler {
	return ra.require("manage_upi_config", ra.authorizer.CanManageUPIConfigCtx)
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.require("admin", ra.authorizer.IsAdminCtx)
}
