package order

import (
	"time"

	orderDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/order"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusCancelled = "CANCELLED"
)

// Payment status of an order mirrors the latest payment submission.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusSubmitted = "PAYMENT_SUBMITTED"
	PaymentStatusVerified  = "VERIFIED"
	PaymentStatusRejected  = "REJECTED"
)

const PaymentMethodUPI = "UPI"

type Order struct {
	ID            string          `json:"id"`
	CustomerID    int64           `json:"customerId"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	OrderStatus   string          `json:"orderStatus"`
	PaymentStatus string          `json:"paymentStatus"`
	PaymentMethod string          `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// FormattedTotal renders the amount the way notifications show it, e.g. "₹1250.00".
func (o *Order) FormattedTotal() string {
	symbol := "₹"
	if o.Currency != "" && o.Currency != "INR" {
		symbol = o.Currency + " "
	}
	return symbol + o.TotalAmount.StringFixed(2)
}

func ToDataModel(o *Order) *orderDatamodel.Order {
	return &orderDatamodel.Order{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func FromDataModel(o *orderDatamodel.Order) *Order {
	return &Order{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
