package postgres

import (
	"context"
	"errors"
	"time"

	orderDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/order"
	"github.com/frahmantamala/upi-payments/internal/order"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	row := order.ToDataModel(o)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	o.CreatedAt = row.CreatedAt
	o.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var row orderDatamodel.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return order.FromDataModel(&row), nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*order.Order, error) {
	var rows []orderDatamodel.Order
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	orders := make([]*order.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, order.FromDataModel(&rows[i]))
	}
	return orders, nil
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id, paymentStatus string, orderStatus *string) error {
	updates := map[string]interface{}{
		"payment_status": paymentStatus,
		"updated_at":     time.Now(),
	}
	if orderStatus != nil {
		updates["order_status"] = *orderStatus
	}

	res := r.db.WithContext(ctx).Model(&orderDatamodel.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}
