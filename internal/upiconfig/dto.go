package upiconfig

import (
	"strings"

	"github.com/frahmantamala/upi-payments/internal/core/common/validation"
)

type UpdateConfigDTO struct {
	UPIID        string  `json:"upiId"`
	PayeeName    string  `json:"payeeName"`
	QRImageURL   *string `json:"qrImageUrl,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

func (d UpdateConfigDTO) Validate() error {
	if err := validation.ValidateUPIID(strings.TrimSpace(d.UPIID)); err != nil {
		return err
	}

	v := validation.NewValidator()
	v.Field("payeeName", d.PayeeName).Required().MaxLength(100)
	v.Field("qrImageUrl", d.QRImageURL).MaxLength(500)
	v.Field("instructions", d.Instructions).MaxLength(1000)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
