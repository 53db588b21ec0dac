package order

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/transport"
	"github.com/frahmantamala/upi-payments/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	GetOrderForUser(ctx context.Context, id string, caller *auth.User) (*Order, error)
	ListForUser(ctx context.Context, caller *auth.User, limit, offset int) ([]*Order, error)
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

// GetOrder handles GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	o, err := h.Service.GetOrderForUser(r.Context(), chi.URLParam(r, "id"), caller)
	if err != nil {
		h.Logger.Warn("GetOrder: service error", "error", err, "order_id", chi.URLParam(r, "id"), "user_id", caller.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, o)
}

// ListOrders handles GET /orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	limit, offset := h.Pagination(r, 20)
	orders, err := h.Service.ListForUser(r.Context(), caller, limit, offset)
	if err != nil {
		h.Logger.Error("ListOrders: service error", "error", err, "user_id", caller.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, orders)
}
