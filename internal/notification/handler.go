package notification

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/transport"
	"github.com/frahmantamala/upi-payments/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	List(ctx context.Context, caller *auth.User, unreadOnly bool, limit, offset int) (*ListResult, error)
	MarkRead(ctx context.Context, caller *auth.User, id int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// ListNotifications handles GET /notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	limit, offset := h.Pagination(r, 20)

	result, err := h.Service.List(r.Context(), caller, unreadOnly, limit, offset)
	if err != nil {
		h.Logger.Error("ListNotifications: service error", "error", err, "user_id", caller.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, result)
}

// MarkRead handles PATCH /notifications/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.Service.MarkRead(r.Context(), caller, id); err != nil {
		h.Logger.Warn("MarkRead: service error", "error", err, "notification_id", id, "user_id", caller.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, map[string]interface{}{"id": id, "isRead": true})
}
