package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Notify(ctx context.Context, n *Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "failed to store notification",
			"user_id", n.UserID,
			"type", n.Type,
			"error", err)
		return err
	}
	s.logger.InfoContext(ctx, "notification stored",
		"notification_id", n.ID,
		"user_id", n.UserID,
		"type", n.Type)
	return nil
}

func (s *Service) List(ctx context.Context, caller *auth.User, unreadOnly bool, limit, offset int) (*ListResult, error) {
	if caller == nil {
		return nil, internal.ErrMissingToken
	}

	items, err := s.repo.ListByUser(ctx, caller.ID, unreadOnly, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list notifications", err)
	}
	unread, err := s.repo.CountUnread(ctx, caller.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to count notifications", err)
	}

	return &ListResult{Notifications: items, UnreadCount: unread}, nil
}

func (s *Service) MarkRead(ctx context.Context, caller *auth.User, id int64) error {
	if caller == nil {
		return internal.ErrMissingToken
	}
	if err := s.repo.MarkRead(ctx, id, caller.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrNotificationNotFound
		}
		return internal.NewInternalError("failed to mark notification read", err)
	}
	return nil
}
