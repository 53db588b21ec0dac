package submission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/intake"
	"github.com/frahmantamala/upi-payments/internal/transport"
	"github.com/frahmantamala/upi-payments/pkg/logger"
	"github.com/go-chi/chi"
)

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
)

type ServiceAPI interface {
	Submit(ctx context.Context, caller *auth.User, orderID string, upload intake.Upload, resubmit bool) (*UploadResponse, error)
	GetStatus(ctx context.Context, caller *auth.User, orderID string) (*PaymentStatusView, error)
	GetHistory(ctx context.Context, caller *auth.User, orderID string) ([]*PaymentSubmission, error)
	ListPending(ctx context.Context, admin *auth.User, limit, offset int) ([]*PendingReview, error)
	VerifyPayment(ctx context.Context, submissionID string, admin *auth.User, dto VerifyPaymentDTO) (*PaymentSubmission, error)
	VerifyOrderPayment(ctx context.Context, orderID string, admin *auth.User, dto VerifyPaymentDTO) (*VerificationResult, error)
}

type Handler struct {
	*transport.BaseHandler
	Service     ServiceAPI
	maxFileSize int64
}

func NewHandler(svc ServiceAPI, maxFileSize int64) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if maxFileSize <= 0 {
		maxFileSize = 5 << 20
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		maxFileSize: maxFileSize,
	}
}

// UploadScreenshot handles POST /upi-payments/upload
func (h *Handler) UploadScreenshot(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, false)
}

// ResubmitScreenshot handles POST /upi-payments/resubmit
func (h *Handler) ResubmitScreenshot(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, true)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, resubmit bool) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	upload, orderID, err := h.readUpload(w, r)
	if err != nil {
		h.Logger.Warn("UploadScreenshot: invalid upload", "error", err, "user_id", caller.ID)
		h.HandleServiceError(w, err)
		return
	}

	resp, err := h.Service.Submit(r.Context(), caller, orderID, upload, resubmit)
	if err != nil {
		h.Logger.Warn("UploadScreenshot: service error",
			"error", err,
			"order_id", orderID,
			"user_id", caller.ID,
			"resubmit", resubmit)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusCreated, resp)
}

// readUpload parses the multipart form. The body is capped a little above the
// file limit so an oversized screenshot fails fast as FILE_TOO_LARGE.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (intake.Upload, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return intake.Upload{}, "", internal.FileTooLarge(h.maxFileSize)
		}
		return intake.Upload{}, "", internal.NewValidationError("invalid multipart form", internal.ErrCodeValidationFailed).WithCause(err)
	}
	defer r.MultipartForm.RemoveAll()

	orderID := r.FormValue("orderId")

	file, header, err := r.FormFile("screenshot")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			if orderID == "" {
				return intake.Upload{}, "", internal.ErrMissingOrderID
			}
			return intake.Upload{}, "", internal.NewValidationFieldError("screenshot", "screenshot is required", internal.ErrCodeValidationFailed)
		}
		return intake.Upload{}, "", internal.NewValidationError("invalid screenshot upload", internal.ErrCodeValidationFailed).WithCause(err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		return intake.Upload{}, "", internal.NewValidationError("failed to read screenshot", internal.ErrCodeValidationFailed).WithCause(err)
	}

	return intake.Upload{
		Data:             data,
		DeclaredMimeType: header.Header.Get("Content-Type"),
		Size:             header.Size,
		Filename:         header.Filename,
	}, orderID, nil
}

// GetStatus handles GET /payments/status?orderId= and GET /upi-payments/status/{orderId}
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		orderID = r.URL.Query().Get("orderId")
	}

	view, err := h.Service.GetStatus(r.Context(), caller, orderID)
	if err != nil {
		h.Logger.Warn("GetStatus: service error", "error", err, "order_id", orderID, "user_id", caller.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, view)
}

// GetHistory handles GET /upi-payments/history?orderId=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	orderID := r.URL.Query().Get("orderId")
	history, err := h.Service.GetHistory(r.Context(), caller, orderID)
	if err != nil {
		h.Logger.Warn("GetHistory: service error", "error", err, "order_id", orderID, "user_id", caller.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, history)
}

// ListPending handles GET /upi-payments/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	limit, offset := h.Pagination(r, 50)
	items, err := h.Service.ListPending(r.Context(), admin, limit, offset)
	if err != nil {
		h.Logger.Error("ListPending: service error", "error", err, "user_id", admin.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, items)
}

// VerifyPayment handles POST /upi-payments/{id}/verify
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	var dto VerifyPaymentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	submissionID := chi.URLParam(r, "id")
	sub, err := h.Service.VerifyPayment(r.Context(), submissionID, admin, dto)
	if err != nil {
		h.Logger.Warn("VerifyPayment: service error",
			"error", err,
			"submission_id", submissionID,
			"admin_id", admin.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, sub)
}

// VerifyOrderPayment handles POST /orders/{id}/verify-payment
func (h *Handler) VerifyOrderPayment(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrMissingToken)
		return
	}

	var dto VerifyPaymentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	orderID := chi.URLParam(r, "id")
	result, err := h.Service.VerifyOrderPayment(r.Context(), orderID, admin, dto)
	if err != nil {
		h.Logger.Warn("VerifyOrderPayment: service error",
			"error", err,
			"order_id", orderID,
			"admin_id", admin.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, result)
}
