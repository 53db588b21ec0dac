package submission

import "time"

// PaymentSubmission is one screenshot attempt for an order. Rows are never
// deleted; a resubmission is a new row with the next attempt number.
type PaymentSubmission struct {
	ID                    string     `gorm:"primaryKey"`
	OrderID               string     `gorm:"column:order_id;not null;uniqueIndex:idx_upi_payments_order_attempt,priority:1;index:idx_upi_payments_active_order,unique,where:status = 'pending_verification'"`
	CustomerID            int64      `gorm:"column:customer_id;not null;index"`
	ScreenshotRef         string     `gorm:"column:screenshot_ref;not null"`
	ScreenshotContentType string     `gorm:"column:screenshot_content_type;not null"`
	ScreenshotSize        int64      `gorm:"column:screenshot_size;not null"`
	ScreenshotChecksum    string     `gorm:"column:screenshot_checksum"`
	UTR                   *string    `gorm:"column:utr;index:idx_upi_payments_verified_utr,unique,where:status = 'verified'"`
	UTRDetected           bool       `gorm:"column:utr_detected;not null"`
	OCRConfidence         float64    `gorm:"column:ocr_confidence;not null"`
	OCRText               string     `gorm:"column:ocr_text"`
	OCRLineCount          int        `gorm:"column:ocr_line_count"`
	OCRError              *string    `gorm:"column:ocr_error"`
	Status                string     `gorm:"column:status;not null;index"`
	AttemptNumber         int        `gorm:"column:attempt_number;not null;uniqueIndex:idx_upi_payments_order_attempt,priority:2"`
	MaxAttempts           int        `gorm:"column:max_attempts;not null"`
	SubmittedAt           time.Time  `gorm:"column:submitted_at;not null"`
	VerifiedAt            *time.Time `gorm:"column:verified_at"`
	ExpiresAt             time.Time  `gorm:"column:expires_at;not null;index"`
	AdminNotes            *string    `gorm:"column:admin_notes"`
	VerifiedBy            *int64     `gorm:"column:verified_by"`
	Version               int64      `gorm:"column:version;not null;default:1"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentSubmission) TableName() string {
	return "upi_payments"
}
