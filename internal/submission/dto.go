package submission

import (
	"strings"
	"time"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/core/common/validation"
	"github.com/frahmantamala/upi-payments/internal/ocr"
)

// VerifyPaymentDTO is the admin decision on a pending submission. UTR, when
// given on a confirmation, replaces the value read by OCR.
type VerifyPaymentDTO struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"adminNotes,omitempty"`
	UTR        *string `json:"utr,omitempty"`
}

func (d VerifyPaymentDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("status", d.Status).
		Required().
		OneOf(internal.ErrCodeInvalidDecision, DecisionConfirmed, DecisionRejected)
	v.Field("adminNotes", d.AdminNotes).MaxLength(1000)
	if err := v.Validate(); err != nil {
		return err
	}

	if utr := d.CorrectedUTR(); utr != nil {
		if err := validation.ValidateUTR("utr", *utr); err != nil {
			return err
		}
	}
	return nil
}

func (d VerifyPaymentDTO) IsConfirmation() bool {
	return d.Status == DecisionConfirmed
}

// CorrectedUTR returns the upper-cased correction, or nil when none was sent.
func (d VerifyPaymentDTO) CorrectedUTR() *string {
	if d.UTR == nil {
		return nil
	}
	utr := strings.ToUpper(strings.TrimSpace(*d.UTR))
	if utr == "" {
		return nil
	}
	return &utr
}

func (d VerifyPaymentDTO) Notes() *string {
	if d.AdminNotes == nil {
		return nil
	}
	notes := strings.TrimSpace(*d.AdminNotes)
	if notes == "" {
		return nil
	}
	return &notes
}

type OCRData struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	LineCount  int     `json:"lineCount"`
}

// UploadResponse is returned by the upload and resubmit endpoints.
type UploadResponse struct {
	PaymentID     string    `json:"paymentId"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	AttemptNumber int       `json:"attemptNumber"`
	MaxAttempts   int       `json:"maxAttempts"`
	UTRDetected   bool      `json:"utrDetected"`
	UTR           *string   `json:"utr,omitempty"`
	OCRConfidence float64   `json:"ocrConfidence"`
	ExpiresAt     time.Time `json:"expiresAt"`
	OCRData       OCRData   `json:"ocrData"`
}

func ToUploadResponse(s *PaymentSubmission, res *ocr.Result) *UploadResponse {
	resp := &UploadResponse{
		PaymentID:     s.ID,
		OrderID:       s.OrderID,
		Status:        s.Status,
		AttemptNumber: s.AttemptNumber,
		MaxAttempts:   s.MaxAttempts,
		UTRDetected:   s.UTRDetected,
		UTR:           s.UTR,
		OCRConfidence: s.OCRConfidence,
		ExpiresAt:     s.ExpiresAt,
		OCRData: OCRData{
			Text:       s.OCRText,
			Confidence: s.OCRConfidence,
			LineCount:  s.OCRLineCount,
		},
	}
	if res != nil {
		resp.OCRData = OCRData{Text: res.RawText, Confidence: res.Confidence, LineCount: res.LineCount}
	}
	return resp
}

// PendingReview is one entry of the admin review queue.
type PendingReview struct {
	*PaymentSubmission
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
	IsExpired     bool   `json:"isExpired"`
}
