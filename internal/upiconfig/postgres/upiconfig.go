package postgres

import (
	"context"
	"errors"

	upiconfigDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/upiconfig"
	"github.com/frahmantamala/upi-payments/internal/upiconfig"
	"gorm.io/gorm"
)

type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) GetActive(ctx context.Context) (*upiconfig.Config, error) {
	var row upiconfigDatamodel.UPIConfig
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("updated_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, upiconfig.ErrNotFound
		}
		return nil, err
	}
	return upiconfig.FromDataModel(&row), nil
}

func (r *ConfigRepository) Replace(ctx context.Context, c *upiconfig.Config) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&upiconfigDatamodel.UPIConfig{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error
		if err != nil {
			return err
		}

		row := upiconfig.ToDataModel(c)
		row.ID = 0
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		c.ID = row.ID
		c.UpdatedAt = row.UpdatedAt
		return nil
	})
}
