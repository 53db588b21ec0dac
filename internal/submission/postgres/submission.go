package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	submissionDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/submission"
	"github.com/frahmantamala/upi-payments/internal/submission"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

type SubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *submission.PaymentSubmission) error {
	row := submission.ToDataModel(s)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return translate(err)
	}
	s.CreatedAt = row.CreatedAt
	s.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*submission.PaymentSubmission, error) {
	var row submissionDatamodel.PaymentSubmission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return submission.FromDataModel(&row), nil
}

func (r *SubmissionRepository) ListByOrder(ctx context.Context, orderID string) ([]*submission.PaymentSubmission, error) {
	var rows []*submissionDatamodel.PaymentSubmission
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return submission.FromDataModelSlice(rows), nil
}

func (r *SubmissionRepository) GetActiveByOrder(ctx context.Context, orderID string) (*submission.PaymentSubmission, error) {
	var row submissionDatamodel.PaymentSubmission
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, submission.StatusPendingVerification).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return submission.FromDataModel(&row), nil
}

func (r *SubmissionRepository) FindVerifiedByUTR(ctx context.Context, utr string) (*submission.PaymentSubmission, error) {
	var row submissionDatamodel.PaymentSubmission
	err := r.db.WithContext(ctx).
		Where("utr = ? AND status = ?", utr, submission.StatusVerified).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return submission.FromDataModel(&row), nil
}

// TransitionFromPending is a single conditional UPDATE so a racing admin and
// sweep cannot both apply. The version column grows by one on every write.
func (r *SubmissionRepository) TransitionFromPending(ctx context.Context, id, to string, upd submission.TransitionUpdate) (bool, error) {
	at := upd.At.UTC()
	updates := map[string]interface{}{
		"status":      to,
		"verified_at": at,
		"updated_at":  at,
		"version":     gorm.Expr("version + 1"),
	}
	if upd.AdminNotes != nil {
		updates["admin_notes"] = *upd.AdminNotes
	}
	if upd.VerifiedBy != nil {
		updates["verified_by"] = *upd.VerifiedBy
	}
	if upd.UTR != nil {
		updates["utr"] = *upd.UTR
	}

	result := r.db.WithContext(ctx).
		Model(&submissionDatamodel.PaymentSubmission{}).
		Where("id = ? AND status = ?", id, submission.StatusPendingVerification).
		Updates(updates)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *SubmissionRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*submission.PaymentSubmission, error) {
	var rows []*submissionDatamodel.PaymentSubmission
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", submission.StatusPendingVerification, now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return submission.FromDataModelSlice(rows), nil
}

func (r *SubmissionRepository) ListPending(ctx context.Context, limit, offset int) ([]*submission.PaymentSubmission, error) {
	var rows []*submissionDatamodel.PaymentSubmission
	err := r.db.WithContext(ctx).
		Where("status = ?", submission.StatusPendingVerification).
		Order("submitted_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return submission.FromDataModelSlice(rows), nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return submission.ErrSubmissionNotFound
	}
	if isUniqueViolation(err) {
		return errors.Join(submission.ErrUniqueViolation, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
