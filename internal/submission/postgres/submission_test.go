package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	submissionDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/submission"
	"github.com/frahmantamala/upi-payments/internal/ocr"
	"github.com/frahmantamala/upi-payments/internal/storage"
	"github.com/frahmantamala/upi-payments/internal/submission"
	submissionPostgres "github.com/frahmantamala/upi-payments/internal/submission/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSubmissionRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Submission Repository Suite")
}

var _ = Describe("SubmissionRepository", func() {
	var (
		ctx  context.Context
		db   *gorm.DB
		repo *submissionPostgres.SubmissionRepository
		now  time.Time
	)

	newSubmission := func(orderID string, attempt int, res *ocr.Result) *submission.PaymentSubmission {
		ref := storage.FileRef{Key: "payment-screenshots/" + orderID + "/shot.png", ContentType: "image/png", Size: 2048}
		return submission.NewSubmission(orderID, 7, ref, res, attempt, 3, now, 48*time.Hour)
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&submissionDatamodel.PaymentSubmission{})).To(Succeed())

		repo = submissionPostgres.NewSubmissionRepository(db)
	})

	Describe("Create", func() {
		It("should persist a submission and read it back", func() {
			// Given
			sub := newSubmission("ORD-1", 1, ocr.NewResult("UTR: 3205241234567890", 92))

			// When
			err := repo.Create(ctx, sub)

			// Then
			Expect(err).NotTo(HaveOccurred())
			stored, err := repo.GetByID(ctx, sub.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(submission.StatusPendingVerification))
			Expect(*stored.UTR).To(Equal("3205241234567890"))
			Expect(stored.OCRConfidence).To(Equal(92.0))
			Expect(stored.Version).To(Equal(int64(1)))
			Expect(stored.ExpiresAt.Equal(now.Add(48 * time.Hour))).To(BeTrue())
		})

		It("should refuse a second pending submission for the same order", func() {
			Expect(repo.Create(ctx, newSubmission("ORD-1", 1, nil))).To(Succeed())

			err := repo.Create(ctx, newSubmission("ORD-1", 2, nil))

			Expect(errors.Is(err, submission.ErrUniqueViolation)).To(BeTrue())
		})

		It("should refuse a repeated attempt number for the same order", func() {
			first := newSubmission("ORD-1", 1, nil)
			Expect(repo.Create(ctx, first)).To(Succeed())
			ok, err := repo.TransitionFromPending(ctx, first.ID, submission.StatusRejected, submission.TransitionUpdate{At: now})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			err = repo.Create(ctx, newSubmission("ORD-1", 1, nil))

			Expect(errors.Is(err, submission.ErrUniqueViolation)).To(BeTrue())
		})
	})

	Describe("GetByID", func() {
		It("should report a missing submission", func() {
			_, err := repo.GetByID(ctx, "missing")

			Expect(errors.Is(err, submission.ErrSubmissionNotFound)).To(BeTrue())
		})
	})

	Describe("TransitionFromPending", func() {
		var sub *submission.PaymentSubmission

		BeforeEach(func() {
			sub = newSubmission("ORD-1", 1, ocr.NewResult("Ref No 3205241234567890", 80))
			Expect(repo.Create(ctx, sub)).To(Succeed())
		})

		It("should apply the decision and bump the version", func() {
			notes := "matches bank statement"
			admin := int64(1)

			ok, err := repo.TransitionFromPending(ctx, sub.ID, submission.StatusVerified, submission.TransitionUpdate{
				At:         now.Add(time.Hour),
				AdminNotes: &notes,
				VerifiedBy: &admin,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			stored, err := repo.GetByID(ctx, sub.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(submission.StatusVerified))
			Expect(stored.Version).To(Equal(int64(2)))
			Expect(stored.VerifiedAt).NotTo(BeNil())
			Expect(*stored.AdminNotes).To(Equal(notes))
			Expect(*stored.VerifiedBy).To(Equal(admin))
		})

		It("should not touch a submission that already left pending", func() {
			ok, err := repo.TransitionFromPending(ctx, sub.ID, submission.StatusVerified, submission.TransitionUpdate{At: now})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = repo.TransitionFromPending(ctx, sub.ID, submission.StatusExpired, submission.TransitionUpdate{At: now})

			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			stored, _ := repo.GetByID(ctx, sub.ID)
			Expect(stored.Status).To(Equal(submission.StatusVerified))
			Expect(stored.Version).To(Equal(int64(2)))
		})

		It("should refuse to verify a UTR already verified on another order", func() {
			Expect(repo.TransitionFromPending(ctx, sub.ID, submission.StatusVerified, submission.TransitionUpdate{At: now})).To(BeTrue())
			other := newSubmission("ORD-2", 1, nil)
			Expect(repo.Create(ctx, other)).To(Succeed())
			utr := "3205241234567890"

			_, err := repo.TransitionFromPending(ctx, other.ID, submission.StatusVerified, submission.TransitionUpdate{At: now, UTR: &utr})

			Expect(errors.Is(err, submission.ErrUniqueViolation)).To(BeTrue())
			stored, _ := repo.GetByID(ctx, other.ID)
			Expect(stored.Status).To(Equal(submission.StatusPendingVerification))
		})
	})

	Describe("queries", func() {
		BeforeEach(func() {
			fresh := newSubmission("ORD-1", 1, nil)
			Expect(repo.Create(ctx, fresh)).To(Succeed())

			now = now.Add(-72 * time.Hour)
			stale := newSubmission("ORD-2", 1, ocr.NewResult("Txn ID: AB12CD34EF56GH78", 70))
			Expect(repo.Create(ctx, stale)).To(Succeed())
			now = now.Add(72 * time.Hour)
		})

		It("should list only pending submissions past their window", func() {
			stale, err := repo.ListExpiredPending(ctx, now, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(stale).To(HaveLen(1))
			Expect(stale[0].OrderID).To(Equal("ORD-2"))
		})

		It("should find the active submission of an order", func() {
			active, err := repo.GetActiveByOrder(ctx, "ORD-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(active.AttemptNumber).To(Equal(1))
		})

		It("should find a verified submission by UTR only once it is verified", func() {
			_, err := repo.FindVerifiedByUTR(ctx, "AB12CD34EF56GH78")
			Expect(errors.Is(err, submission.ErrSubmissionNotFound)).To(BeTrue())

			active, err := repo.GetActiveByOrder(ctx, "ORD-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.TransitionFromPending(ctx, active.ID, submission.StatusVerified, submission.TransitionUpdate{At: now})).To(BeTrue())

			found, err := repo.FindVerifiedByUTR(ctx, "AB12CD34EF56GH78")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.OrderID).To(Equal("ORD-2"))
		})

		It("should list the review queue oldest first", func() {
			pending, err := repo.ListPending(ctx, 10, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(2))
			Expect(pending[0].OrderID).To(Equal("ORD-2"))
		})
	})
})
