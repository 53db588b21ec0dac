package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
)

// RequireAnyPermission lets the request through when the authenticated user
// holds at least one of permissions.
func RequireAnyPermission(logger *slog.Logger, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				writeAppError(w, internal.ErrMissingToken)
				return
			}

			if !user.HasAnyPermission(permissions) {
				logger.WarnContext(r.Context(), "access denied: user lacks required permissions",
					"user_id", user.ID,
					"required_permissions", permissions,
					"user_permissions", user.Permissions)
				writeAppError(w, internal.NewForbiddenError("insufficient permissions", internal.ErrCodeUnauthorizedAccess))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
