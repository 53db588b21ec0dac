package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentSubmitted = "payment.submitted"
	EventTypePaymentVerified  = "payment.verified"
	EventTypePaymentRejected  = "payment.rejected"
	EventTypePaymentExpired   = "payment.expired"
)

// SubmissionEventTypes lists every event a payment submission can emit.
var SubmissionEventTypes = []string{
	EventTypePaymentSubmitted,
	EventTypePaymentVerified,
	EventTypePaymentRejected,
	EventTypePaymentExpired,
}

type PaymentSubmissionEvent struct {
	BaseEvent
	SubmissionID  string  `json:"submission_id"`
	OrderID       string  `json:"order_id"`
	CustomerID    int64   `json:"customer_id"`
	Status        string  `json:"status"`
	AttemptNumber int     `json:"attempt_number"`
	MaxAttempts   int     `json:"max_attempts"`
	UTR           *string `json:"utr,omitempty"`
	AdminNotes    *string `json:"admin_notes,omitempty"`
}

// AttemptsRemaining is never negative.
func (e *PaymentSubmissionEvent) AttemptsRemaining() int {
	if e.AttemptNumber >= e.MaxAttempts {
		return 0
	}
	return e.MaxAttempts - e.AttemptNumber
}

func NewPaymentSubmissionEvent(eventType, submissionID, orderID string, customerID int64, status string, attempt, maxAttempts int, utr, adminNotes *string) *PaymentSubmissionEvent {
	data := map[string]interface{}{
		"submission_id":  submissionID,
		"order_id":       orderID,
		"customer_id":    customerID,
		"status":         status,
		"attempt_number": attempt,
		"max_attempts":   maxAttempts,
	}
	if utr != nil {
		data["utr"] = *utr
	}
	if adminNotes != nil {
		data["admin_notes"] = *adminNotes
	}

	return &PaymentSubmissionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data:      data,
		},
		SubmissionID:  submissionID,
		OrderID:       orderID,
		CustomerID:    customerID,
		Status:        status,
		AttemptNumber: attempt,
		MaxAttempts:   maxAttempts,
		UTR:           utr,
		AdminNotes:    adminNotes,
	}
}
