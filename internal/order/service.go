package order

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*Order, error)
	UpdatePaymentStatus(ctx context.Context, id, paymentStatus string, orderStatus *string) error
}

type AccessPolicy interface {
	CanViewOrder(u *auth.User, ownerID int64) error
}

type Service struct {
	repo   Repository
	policy AccessPolicy
	logger *slog.Logger
}

func NewService(repo Repository, policy AccessPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		policy: policy,
		logger: logger,
	}
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	if id == "" {
		return nil, internal.ErrMissingOrderID
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, internal.ErrUnknownOrder
		}
		s.logger.ErrorContext(ctx, "failed to load order", "order_id", id, "error", err)
		return nil, internal.NewInternalError("failed to load order", err)
	}
	return o, nil
}

// OrderOwner returns the customer that placed the order.
func (s *Service) OrderOwner(ctx context.Context, id string) (int64, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return 0, err
	}
	return o.CustomerID, nil
}

func (s *Service) GetOrderForUser(ctx context.Context, id string, caller *auth.User) (*Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanViewOrder(caller, o.CustomerID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, caller *auth.User, limit, offset int) ([]*Order, error) {
	if caller == nil {
		return nil, internal.ErrMissingToken
	}
	orders, err := s.repo.ListByCustomer(ctx, caller.ID, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list orders", "customer_id", caller.ID, "error", err)
		return nil, internal.NewInternalError("failed to list orders", err)
	}
	return orders, nil
}

// ApplyPaymentStatus projects a submission transition onto the order. The
// order status only changes when orderStatus is non-nil.
func (s *Service) ApplyPaymentStatus(ctx context.Context, id, paymentStatus string, orderStatus *string) (*Order, error) {
	if err := s.repo.UpdatePaymentStatus(ctx, id, paymentStatus, orderStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, internal.ErrUnknownOrder
		}
		return nil, err
	}

	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order payment status updated",
		"order_id", id,
		"payment_status", o.PaymentStatus,
		"order_status", o.OrderStatus)

	return o, nil
}
