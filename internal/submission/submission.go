package submission

import (
	"errors"
	"time"

	"github.com/frahmantamala/upi-payments/internal"
	submissionDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/submission"
	"github.com/frahmantamala/upi-payments/internal/ocr"
	"github.com/frahmantamala/upi-payments/internal/storage"
	"github.com/google/uuid"
)

const (
	StatusPendingVerification = "pending_verification"
	StatusVerified            = "verified"
	StatusRejected            = "rejected"
	StatusExpired             = "expired"

	DecisionConfirmed = "confirmed"
	DecisionRejected  = "rejected"

	DefaultMaxAttempts    = 3
	DefaultValidityWindow = 48 * time.Hour
)

var (
	ErrSubmissionNotFound = errors.New("payment submission not found")
	ErrUniqueViolation    = errors.New("payment submission violates a uniqueness rule")
)

type Event string

const (
	EventUpload       Event = "upload"
	EventAdminConfirm Event = "admin_confirm"
	EventAdminReject  Event = "admin_reject"
	EventExpire       Event = "expire"
	EventResubmit     Event = "resubmit"
)

// transitions is keyed by the current status; "" stands for an order with no
// submission yet. Resubmission creates a new row rather than moving the old one.
var transitions = map[string]map[Event]string{
	"": {
		EventUpload: StatusPendingVerification,
	},
	StatusPendingVerification: {
		EventAdminConfirm: StatusVerified,
		EventAdminReject:  StatusRejected,
		EventExpire:       StatusExpired,
	},
	StatusRejected: {
		EventResubmit: StatusPendingVerification,
	},
	StatusExpired: {
		EventResubmit: StatusPendingVerification,
	},
}

// Transition returns the status reached from "from" on ev, or
// internal.ErrInvalidTransition when the table has no such edge.
func Transition(from string, ev Event) (string, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return "", internal.ErrInvalidTransition
	}
	return to, nil
}

type PaymentSubmission struct {
	ID                    string     `json:"id"`
	OrderID               string     `json:"orderId"`
	CustomerID            int64      `json:"customerId"`
	ScreenshotRef         string     `json:"screenshotRef"`
	ScreenshotContentType string     `json:"screenshotContentType"`
	ScreenshotSize        int64      `json:"screenshotSize"`
	ScreenshotChecksum    string     `json:"screenshotChecksum,omitempty"`
	UTR                   *string    `json:"utr"`
	UTRDetected           bool       `json:"utrDetected"`
	OCRConfidence         float64    `json:"ocrConfidence"`
	OCRText               string     `json:"ocrText,omitempty"`
	OCRLineCount          int        `json:"ocrLineCount"`
	OCRError              *string    `json:"ocrError,omitempty"`
	Status                string     `json:"status"`
	AttemptNumber         int        `json:"attemptNumber"`
	MaxAttempts           int        `json:"maxAttempts"`
	SubmittedAt           time.Time  `json:"submittedAt"`
	VerifiedAt            *time.Time `json:"verifiedAt"`
	ExpiresAt             time.Time  `json:"expiresAt"`
	AdminNotes            *string    `json:"adminNotes"`
	VerifiedBy            *int64     `json:"verifiedBy,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// NewSubmission builds the pending row for a stored screenshot and its OCR result.
func NewSubmission(orderID string, customerID int64, ref storage.FileRef, res *ocr.Result, attempt, maxAttempts int, now time.Time, window time.Duration) *PaymentSubmission {
	now = now.UTC()
	if res == nil {
		res = ocr.Degraded(nil)
	}

	s := &PaymentSubmission{
		ID:                    uuid.New().String(),
		OrderID:               orderID,
		CustomerID:            customerID,
		ScreenshotRef:         ref.Key,
		ScreenshotContentType: ref.ContentType,
		ScreenshotSize:        ref.Size,
		ScreenshotChecksum:    ref.Checksum,
		UTR:                   res.UTR,
		UTRDetected:           res.UTRDetected,
		OCRConfidence:         res.Confidence,
		OCRText:               res.RawText,
		OCRLineCount:          res.LineCount,
		Status:                StatusPendingVerification,
		AttemptNumber:         attempt,
		MaxAttempts:           maxAttempts,
		SubmittedAt:           now,
		ExpiresAt:             now.Add(window),
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if res.Error != "" {
		msg := res.Error
		s.OCRError = &msg
	}
	return s
}

func (s *PaymentSubmission) IsPending() bool {
	return s.Status == StatusPendingVerification
}

// IsExpiredAt reports a pending submission whose review window has passed
// but which the sweep has not moved yet.
func (s *PaymentSubmission) IsExpiredAt(now time.Time) bool {
	return s.IsPending() && now.After(s.ExpiresAt)
}

func (s *PaymentSubmission) AttemptsRemaining() int {
	if s.AttemptNumber >= s.MaxAttempts {
		return 0
	}
	return s.MaxAttempts - s.AttemptNumber
}

// CanResubmit reports whether the customer may upload another screenshot after this one.
func (s *PaymentSubmission) CanResubmit(now time.Time) bool {
	if s.AttemptsRemaining() == 0 {
		return false
	}
	switch s.Status {
	case StatusRejected, StatusExpired:
		return true
	case StatusPendingVerification:
		return s.IsExpiredAt(now)
	}
	return false
}

// PaymentStatusView is what polling clients read. Version and UpdatedAt let a
// client drop responses older than one it already has.
type PaymentStatusView struct {
	OrderID           string     `json:"orderId"`
	HasPayment        bool       `json:"hasPayment"`
	SubmissionID      string     `json:"submissionId,omitempty"`
	Status            string     `json:"status,omitempty"`
	UTR               *string    `json:"utr"`
	UTRDetected       bool       `json:"utrDetected"`
	OCRConfidence     float64    `json:"ocrConfidence"`
	Attempts          int        `json:"attempts"`
	MaxAttempts       int        `json:"maxAttempts"`
	AttemptsRemaining int        `json:"attemptsRemaining"`
	CanResubmit       bool       `json:"canResubmit"`
	SubmittedAt       *time.Time `json:"submittedAt,omitempty"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	IsExpired         bool       `json:"isExpired"`
	VerifiedAt        *time.Time `json:"verifiedAt"`
	AdminNotes        *string    `json:"adminNotes"`
	Version           int64      `json:"version"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

// BuildStatusView summarises an order's submissions, which must be ordered by
// attempt number.
func BuildStatusView(orderID string, subs []*PaymentSubmission, maxAttempts int, now time.Time) *PaymentStatusView {
	v := &PaymentStatusView{
		OrderID:           orderID,
		MaxAttempts:       maxAttempts,
		AttemptsRemaining: maxAttempts,
	}
	if len(subs) == 0 {
		return v
	}

	latest := subs[len(subs)-1]
	submittedAt := latest.SubmittedAt
	expiresAt := latest.ExpiresAt
	updatedAt := latest.UpdatedAt

	v.HasPayment = true
	v.SubmissionID = latest.ID
	v.Status = latest.Status
	v.UTR = latest.UTR
	v.UTRDetected = latest.UTRDetected
	v.OCRConfidence = latest.OCRConfidence
	v.Attempts = latest.AttemptNumber
	v.MaxAttempts = latest.MaxAttempts
	v.SubmittedAt = &submittedAt
	v.ExpiresAt = &expiresAt
	v.VerifiedAt = latest.VerifiedAt
	v.AdminNotes = latest.AdminNotes
	v.Version = latest.Version
	v.UpdatedAt = &updatedAt
	v.Refresh(now)
	return v
}

// Refresh recomputes the time dependent fields, which must never be served from cache.
func (v *PaymentStatusView) Refresh(now time.Time) {
	if !v.HasPayment {
		v.IsExpired = false
		v.CanResubmit = false
		v.AttemptsRemaining = v.MaxAttempts
		return
	}

	v.AttemptsRemaining = v.MaxAttempts - v.Attempts
	if v.AttemptsRemaining < 0 {
		v.AttemptsRemaining = 0
	}
	v.IsExpired = v.Status == StatusPendingVerification && v.ExpiresAt != nil && now.After(*v.ExpiresAt)

	switch {
	case v.AttemptsRemaining == 0:
		v.CanResubmit = false
	case v.Status == StatusRejected, v.Status == StatusExpired:
		v.CanResubmit = true
	default:
		v.CanResubmit = v.IsExpired
	}
}

func ToDataModel(s *PaymentSubmission) *submissionDatamodel.PaymentSubmission {
	return &submissionDatamodel.PaymentSubmission{
		ID:                    s.ID,
		OrderID:               s.OrderID,
		CustomerID:            s.CustomerID,
		ScreenshotRef:         s.ScreenshotRef,
		ScreenshotContentType: s.ScreenshotContentType,
		ScreenshotSize:        s.ScreenshotSize,
		ScreenshotChecksum:    s.ScreenshotChecksum,
		UTR:                   s.UTR,
		UTRDetected:           s.UTRDetected,
		OCRConfidence:         s.OCRConfidence,
		OCRText:               s.OCRText,
		OCRLineCount:          s.OCRLineCount,
		OCRError:              s.OCRError,
		Status:                s.Status,
		AttemptNumber:         s.AttemptNumber,
		MaxAttempts:           s.MaxAttempts,
		SubmittedAt:           s.SubmittedAt,
		VerifiedAt:            s.VerifiedAt,
		ExpiresAt:             s.ExpiresAt,
		AdminNotes:            s.AdminNotes,
		VerifiedBy:            s.VerifiedBy,
		Version:               s.Version,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func FromDataModel(s *submissionDatamodel.PaymentSubmission) *PaymentSubmission {
	return &PaymentSubmission{
		ID:                    s.ID,
		OrderID:               s.OrderID,
		CustomerID:            s.CustomerID,
		ScreenshotRef:         s.ScreenshotRef,
		ScreenshotContentType: s.ScreenshotContentType,
		ScreenshotSize:        s.ScreenshotSize,
		ScreenshotChecksum:    s.ScreenshotChecksum,
		UTR:                   s.UTR,
		UTRDetected:           s.UTRDetected,
		OCRConfidence:         s.OCRConfidence,
		OCRText:               s.OCRText,
		OCRLineCount:          s.OCRLineCount,
		OCRError:              s.OCRError,
		Status:                s.Status,
		AttemptNumber:         s.AttemptNumber,
		MaxAttempts:           s.MaxAttempts,
		SubmittedAt:           s.SubmittedAt,
		VerifiedAt:            s.VerifiedAt,
		ExpiresAt:             s.ExpiresAt,
		AdminNotes:            s.AdminNotes,
		VerifiedBy:            s.VerifiedBy,
		Version:               s.Version,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*submissionDatamodel.PaymentSubmission) []*PaymentSubmission {
	result := make([]*PaymentSubmission, len(rows))
	for i, r := range rows {
		result[i] = FromDataModel(r)
	}
	return result
}
