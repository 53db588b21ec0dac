package postgres

import (
	"errors"

	userDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/user"
	"github.com/frahmantamala/upi-payments/internal/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(userID int64) (*user.User, error) {
	var row userDatamodel.User
	if err := r.db.Where("id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

func (r *Repository) GetPermissions(userID int64) ([]string, error) {
	var names []string
	err := r.db.Table("permissions").
		Select("permissions.name").
		Joins("JOIN user_permissions ON user_permissions.permission_id = permissions.id").
		Where("user_permissions.user_id = ?", userID).
		Order("permissions.name").
		Pluck("permissions.name", &names).Error
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
