package notification

import (
	"errors"
	"time"

	notificationDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/notification"
)

const (
	TypePaymentSubmitted = "payment_submitted"
	TypePaymentVerified  = "payment_verified"
	TypePaymentRejected  = "payment_rejected"
	TypePaymentExpired   = "payment_expired"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	OrderID   *string   `json:"orderId,omitempty"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListResult struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unreadCount"`
}

func ToDataModel(n *Notification) *notificationDatamodel.Notification {
	return &notificationDatamodel.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		OrderID:   n.OrderID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func FromDataModel(n *notificationDatamodel.Notification) *Notification {
	return &Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		OrderID:   n.OrderID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
