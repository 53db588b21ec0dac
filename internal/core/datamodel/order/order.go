package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string          `gorm:"primaryKey"`
	CustomerID    int64           `gorm:"column:customer_id;not null;index"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency      string          `gorm:"column:currency;default:INR"`
	OrderStatus   string          `gorm:"column:order_status;not null"`
	PaymentStatus string          `gorm:"column:payment_status;not null"`
	PaymentMethod string          `gorm:"column:payment_method;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
