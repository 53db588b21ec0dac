package upiconfig

import "time"

type UPIConfig struct {
	ID           int64     `gorm:"primaryKey"`
	UPIID        string    `gorm:"column:upi_id;not null"`
	PayeeName    string    `gorm:"column:payee_name;not null"`
	QRImageURL   *string   `gorm:"column:qr_image_url"`
	Instructions *string   `gorm:"column:instructions"`
	IsActive     bool      `gorm:"column:is_active;default:true"`
	UpdatedBy    *int64    `gorm:"column:updated_by"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UPIConfig) TableName() string {
	return "upi_configs"
}
