package upiconfig

import (
	"errors"
	"time"

	upiconfigDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/upiconfig"
)

var ErrNotFound = errors.New("upi config not found")

// Config is the receiving account customers pay into.
type Config struct {
	ID           int64     `json:"id"`
	UPIID        string    `json:"upiId"`
	PayeeName    string    `json:"payeeName"`
	QRImageURL   *string   `json:"qrImageUrl,omitempty"`
	Instructions *string   `json:"instructions,omitempty"`
	IsActive     bool      `json:"isActive"`
	UpdatedBy    *int64    `json:"updatedBy,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func ToDataModel(c *Config) *upiconfigDatamodel.UPIConfig {
	return &upiconfigDatamodel.UPIConfig{
		ID:           c.ID,
		UPIID:        c.UPIID,
		PayeeName:    c.PayeeName,
		QRImageURL:   c.QRImageURL,
		Instructions: c.Instructions,
		IsActive:     c.IsActive,
		UpdatedBy:    c.UpdatedBy,
		UpdatedAt:    c.UpdatedAt,
	}
}

func FromDataModel(c *upiconfigDatamodel.UPIConfig) *Config {
	return &Config{
		ID:           c.ID,
		UPIID:        c.UPIID,
		PayeeName:    c.PayeeName,
		QRImageURL:   c.QRImageURL,
		Instructions: c.Instructions,
		IsActive:     c.IsActive,
		UpdatedBy:    c.UpdatedBy,
		UpdatedAt:    c.UpdatedAt,
	}
}
