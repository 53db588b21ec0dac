package upiconfig

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/transport"
	"github.com/frahmantamala/upi-payments/pkg/logger"
)

type ServiceAPI interface {
	GetActive(ctx context.Context) (*Config, error)
	Update(ctx context.Context, caller *auth.User, dto UpdateConfigDTO) (*Config, error)
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

// GetConfig handles GET /upi/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.GetActive(r.Context())
	if err != nil {
		h.Logger.Warn("GetConfig: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, c)
}

// UpdateConfig handles PUT /upi/admin/config
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	var dto UpdateConfigDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	c, err := h.Service.Update(r.Context(), caller, dto)
	if err != nil {
		h.Logger.Warn("UpdateConfig: service error", "error", err, "user_id", caller.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, c)
}
