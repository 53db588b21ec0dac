package upiconfig

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
)

type Repository interface {
	GetActive(ctx context.Context) (*Config, error)
	// Replace stores c as the only active configuration, keeping older rows inactive.
	Replace(ctx context.Context, c *Config) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetActive(ctx context.Context) (*Config, error) {
	c, err := s.repo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.ErrUPIConfigNotFound
		}
		s.logger.ErrorContext(ctx, "failed to load upi config", "error", err)
		return nil, internal.NewInternalError("failed to load upi config", err)
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, caller *auth.User, dto UpdateConfigDTO) (*Config, error) {
	if caller == nil || !caller.HasAnyPermission([]string{auth.PermissionAdmin, auth.PermissionManageUPIConfig}) {
		return nil, internal.NewForbiddenError("only admins can change the UPI account", internal.ErrCodeUnauthorizedAccess)
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	updatedBy := caller.ID
	c := &Config{
		UPIID:        strings.TrimSpace(dto.UPIID),
		PayeeName:    strings.TrimSpace(dto.PayeeName),
		QRImageURL:   dto.QRImageURL,
		Instructions: dto.Instructions,
		IsActive:     true,
		UpdatedBy:    &updatedBy,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Replace(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "failed to update upi config", "error", err)
		return nil, internal.NewInternalError("failed to update upi config", err)
	}

	s.logger.InfoContext(ctx, "upi config updated",
		"config_id", c.ID,
		"upi_id", c.UPIID,
		"updated_by", updatedBy)
	return c, nil
}
