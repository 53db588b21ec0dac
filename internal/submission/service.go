package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/cache"
	"github.com/frahmantamala/upi-payments/internal/core/events"
	"github.com/frahmantamala/upi-payments/internal/intake"
	"github.com/frahmantamala/upi-payments/internal/ocr"
	"github.com/frahmantamala/upi-payments/internal/order"
	"github.com/frahmantamala/upi-payments/internal/storage"
)

const statusCachePrefix = "upi:payment-status:"

// TransitionUpdate carries the fields written together with a status change.
// Nil pointers leave the stored value untouched.
type TransitionUpdate struct {
	At         time.Time
	AdminNotes *string
	VerifiedBy *int64
	UTR        *string
}

type Repository interface {
	Create(ctx context.Context, s *PaymentSubmission) error
	GetByID(ctx context.Context, id string) (*PaymentSubmission, error)
	ListByOrder(ctx context.Context, orderID string) ([]*PaymentSubmission, error)
	GetActiveByOrder(ctx context.Context, orderID string) (*PaymentSubmission, error)
	FindVerifiedByUTR(ctx context.Context, utr string) (*PaymentSubmission, error)
	// TransitionFromPending moves the submission to "to" only while it is still
	// pending_verification. It reports false when another writer got there first.
	TransitionFromPending(ctx context.Context, id, to string, upd TransitionUpdate) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*PaymentSubmission, error)
	ListPending(ctx context.Context, limit, offset int) ([]*PaymentSubmission, error)
}

type Intake interface {
	Validate(ctx context.Context, orderID string, caller *auth.User, upload intake.Upload) (*intake.Prepared, error)
	Store(ctx context.Context, p *intake.Prepared) (*intake.StoredFile, error)
}

type Orders interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ApplyPaymentStatus(ctx context.Context, id, paymentStatus string, orderStatus *string) (*order.Order, error)
}

type AccessPolicy interface {
	CanViewOrder(u *auth.User, ownerID int64) error
	CanVerifyPayment(u *auth.User) error
}

type ScreenshotLinker interface {
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Config struct {
	MaxAttempts          int
	ValidityWindow       time.Duration
	AutoVerifyConfidence float64
	StatusCacheTTL       time.Duration
	SweepBatchSize       int
	ScreenshotURLTTL     time.Duration
}

// VerificationResult is returned by the order addressed verify route.
type VerificationResult struct {
	Payment *PaymentSubmission `json:"payment"`
	Order   *order.Order       `json:"order,omitempty"`
}

type Service struct {
	repo      Repository
	intake    Intake
	extractor ocr.Extractor
	orders    Orders
	policy    AccessPolicy
	files     ScreenshotLinker
	cache     cache.Cache
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, in Intake, extractor ocr.Extractor, orders Orders, policy AccessPolicy, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = ocr.DisabledExtractor{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ValidityWindow <= 0 {
		cfg.ValidityWindow = DefaultValidityWindow
	}
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = 10 * time.Second
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	if cfg.ScreenshotURLTTL <= 0 {
		cfg.ScreenshotURLTTL = 15 * time.Minute
	}
	return &Service{
		repo:      repo,
		intake:    in,
		extractor: extractor,
		orders:    orders,
		policy:    policy,
		cache:     cache.NoopCache{},
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithCache(c cache.Cache) *Service {
	if c != nil {
		s.cache = c
	}
	return s
}

func (s *Service) WithPublisher(p events.Publisher) *Service {
	s.publisher = p
	return s
}

func (s *Service) WithScreenshotLinker(l ScreenshotLinker) *Service {
	s.files = l
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Submit runs one upload end to end: intake checks, ledger admission, storage,
// OCR and the ledger write. Nothing is stored when admission fails.
func (s *Service) Submit(ctx context.Context, caller *auth.User, orderID string, upload intake.Upload, resubmit bool) (*UploadResponse, error) {
	prepared, err := s.intake.Validate(ctx, orderID, caller, upload)
	if err != nil {
		return nil, err
	}

	prior, err := s.admit(ctx, prepared.OrderID, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "payment submission refused",
			"order_id", prepared.OrderID,
			"error", err)
		return nil, err
	}
	if resubmit && !hasClosedAttempt(prior) {
		return nil, internal.ErrInvalidTransition.WithMessage("there is no rejected or expired payment to resubmit")
	}

	stored, err := s.intake.Store(ctx, prepared)
	if err != nil {
		return nil, err
	}

	result := s.extract(ctx, stored.Ref)

	sub, err := s.CreateSubmission(ctx, prepared.OrderID, prepared.CustomerID, stored.Ref, result)
	if err != nil {
		return nil, err
	}
	return ToUploadResponse(sub, result), nil
}

func (s *Service) extract(ctx context.Context, ref storage.FileRef) *ocr.Result {
	res, err := s.extractor.ExtractUTR(ctx, ref)
	if err != nil {
		s.logger.WarnContext(ctx, "ocr unavailable, routing screenshot to manual review",
			"screenshot", ref.Key,
			"error", err)
		return ocr.Degraded(err)
	}
	if res == nil {
		return ocr.Degraded(nil)
	}
	return res
}

// CreateSubmission records a new pending attempt for the order.
func (s *Service) CreateSubmission(ctx context.Context, orderID string, customerID int64, ref storage.FileRef, res *ocr.Result) (*PaymentSubmission, error) {
	now := s.now()

	prior, err := s.admit(ctx, orderID, now)
	if err != nil {
		return nil, err
	}

	from, ev := "", EventUpload
	if n := len(prior); n > 0 {
		from, ev = prior[n-1].Status, EventResubmit
	}
	if _, err := Transition(from, ev); err != nil {
		return nil, err
	}

	sub := NewSubmission(orderID, customerID, ref, res, len(prior)+1, s.cfg.MaxAttempts, now, s.cfg.ValidityWindow)
	if err := s.repo.Create(ctx, sub); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			s.logger.WarnContext(ctx, "concurrent payment submission for order",
				"order_id", orderID,
				"attempt", sub.AttemptNumber)
			return nil, internal.ErrSubmissionPending
		}
		s.logger.ErrorContext(ctx, "failed to record payment submission",
			"order_id", orderID,
			"error", err)
		return nil, internal.NewInternalError("failed to record payment submission", err)
	}

	s.logger.InfoContext(ctx, "payment submission created",
		"submission_id", sub.ID,
		"order_id", orderID,
		"attempt", sub.AttemptNumber,
		"utr_detected", sub.UTRDetected,
		"ocr_confidence", sub.OCRConfidence)

	s.afterTransition(ctx, sub)

	if verified := s.autoVerify(ctx, sub); verified != nil {
		return verified, nil
	}
	return sub, nil
}

// admit loads the order's attempts and checks a new one may be added. A pending
// attempt whose window already passed is expired on the way.
func (s *Service) admit(ctx context.Context, orderID string, now time.Time) ([]*PaymentSubmission, error) {
	prior, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load payment submissions", err)
	}

	for i, p := range prior {
		switch p.Status {
		case StatusVerified:
			return nil, internal.ErrPaymentAlreadyVerified
		case StatusPendingVerification:
			if !p.IsExpiredAt(now) {
				return nil, internal.ErrSubmissionPending
			}
			current, err := s.expire(ctx, p, now)
			if err != nil {
				return nil, err
			}
			prior[i] = current
		}
	}

	if len(prior) >= s.cfg.MaxAttempts {
		return nil, internal.ErrAttemptsExhausted
	}
	return prior, nil
}

func (s *Service) expire(ctx context.Context, p *PaymentSubmission, now time.Time) (*PaymentSubmission, error) {
	updated, ok, err := s.transition(ctx, p, EventExpire, TransitionUpdate{At: now})
	if err != nil {
		return nil, err
	}
	if ok {
		return updated, nil
	}

	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload payment submission", err)
	}
	switch current.Status {
	case StatusVerified:
		return nil, internal.ErrPaymentAlreadyVerified
	case StatusPendingVerification:
		return nil, internal.ErrSubmissionPending
	}
	return current, nil
}

// transition applies ev to a pending submission with a conditional write. ok is
// false when the stored row had already left pending_verification.
func (s *Service) transition(ctx context.Context, sub *PaymentSubmission, ev Event, upd TransitionUpdate) (*PaymentSubmission, bool, error) {
	to, err := Transition(sub.Status, ev)
	if err != nil {
		return nil, false, err
	}

	ok, err := s.repo.TransitionFromPending(ctx, sub.ID, to, upd)
	if err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return nil, false, internal.ErrUTRAlreadyUsed
		}
		s.logger.ErrorContext(ctx, "failed to update payment submission",
			"submission_id", sub.ID,
			"to", to,
			"error", err)
		return nil, false, internal.NewInternalError("failed to update payment submission", err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "payment submission already left pending_verification",
			"submission_id", sub.ID,
			"order_id", sub.OrderID,
			"to", to)
		return nil, false, nil
	}

	updated, err := s.repo.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, false, internal.NewInternalError("failed to reload payment submission", err)
	}

	s.logger.InfoContext(ctx, "payment submission transitioned",
		"submission_id", updated.ID,
		"order_id", updated.OrderID,
		"from", sub.Status,
		"to", updated.Status,
		"version", updated.Version)

	s.afterTransition(ctx, updated)
	return updated, true, nil
}

// afterTransition projects the submission onto its order, drops the cached
// status and publishes the event. Projection failures are logged only; the
// submission row stays the source of truth.
func (s *Service) afterTransition(ctx context.Context, sub *PaymentSubmission) {
	var eventType string
	switch sub.Status {
	case StatusPendingVerification:
		eventType = events.EventTypePaymentSubmitted
		s.project(ctx, sub.OrderID, order.PaymentStatusSubmitted, nil)
	case StatusVerified:
		eventType = events.EventTypePaymentVerified
		confirmed := order.OrderStatusConfirmed
		s.project(ctx, sub.OrderID, order.PaymentStatusVerified, &confirmed)
	case StatusRejected:
		eventType = events.EventTypePaymentRejected
		s.project(ctx, sub.OrderID, order.PaymentStatusRejected, nil)
	case StatusExpired:
		eventType = events.EventTypePaymentExpired
	}

	s.invalidate(ctx, sub.OrderID)

	if s.publisher == nil || eventType == "" {
		return
	}
	event := events.NewPaymentSubmissionEvent(eventType, sub.ID, sub.OrderID, sub.CustomerID, sub.Status,
		sub.AttemptNumber, sub.MaxAttempts, sub.UTR, sub.AdminNotes)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish payment event",
			"event_type", eventType,
			"submission_id", sub.ID,
			"error", err)
	}
}

func (s *Service) project(ctx context.Context, orderID, paymentStatus string, orderStatus *string) {
	if _, err := s.orders.ApplyPaymentStatus(ctx, orderID, paymentStatus, orderStatus); err != nil {
		s.logger.ErrorContext(ctx, "order projection failed",
			"order_id", orderID,
			"payment_status", paymentStatus,
			"error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, orderID string) {
	if err := s.cache.Delete(ctx, statusCachePrefix+orderID); err != nil {
		s.logger.WarnContext(ctx, "failed to drop cached payment status",
			"order_id", orderID,
			"error", err)
	}
}

func (s *Service) autoVerify(ctx context.Context, sub *PaymentSubmission) *PaymentSubmission {
	threshold := s.cfg.AutoVerifyConfidence
	if threshold <= 0 || !sub.UTRDetected || sub.UTR == nil || sub.OCRConfidence < threshold {
		return nil
	}

	if err := s.ensureUTRUnused(ctx, *sub.UTR, sub.ID); err != nil {
		s.logger.InfoContext(ctx, "auto verification skipped",
			"submission_id", sub.ID,
			"reason", err.Error())
		return nil
	}

	notes := fmt.Sprintf("auto-verified at OCR confidence %.0f", sub.OCRConfidence)
	updated, ok, err := s.transition(ctx, sub, EventAdminConfirm, TransitionUpdate{
		At:         s.now(),
		AdminNotes: &notes,
		UTR:        sub.UTR,
	})
	if err != nil || !ok {
		s.logger.WarnContext(ctx, "auto verification did not apply",
			"submission_id", sub.ID,
			"error", err)
		return nil
	}
	return updated
}

func (s *Service) ensureUTRUnused(ctx context.Context, utr, submissionID string) error {
	existing, err := s.repo.FindVerifiedByUTR(ctx, utr)
	switch {
	case errors.Is(err, ErrSubmissionNotFound):
		return nil
	case err != nil:
		return internal.NewInternalError("failed to check UTR", err)
	case existing.ID != submissionID:
		return internal.ErrUTRAlreadyUsed
	}
	return nil
}

// VerifyPayment records an admin decision on the addressed submission.
func (s *Service) VerifyPayment(ctx context.Context, submissionID string, admin *auth.User, dto VerifyPaymentDTO) (*PaymentSubmission, error) {
	if err := s.policy.CanVerifyPayment(admin); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			return nil, internal.ErrUnknownSubmission
		}
		return nil, internal.NewInternalError("failed to load payment submission", err)
	}

	return s.decide(ctx, sub, admin, dto)
}

// VerifyOrderPayment records an admin decision on the order's latest submission.
func (s *Service) VerifyOrderPayment(ctx context.Context, orderID string, admin *auth.User, dto VerifyPaymentDTO) (*VerificationResult, error) {
	if err := s.policy.CanVerifyPayment(admin); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	o, err := s.orders.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.GetActiveByOrder(ctx, o.ID)
	if errors.Is(err, ErrSubmissionNotFound) {
		subs, lerr := s.repo.ListByOrder(ctx, o.ID)
		if lerr != nil {
			return nil, internal.NewInternalError("failed to load payment submissions", lerr)
		}
		if len(subs) == 0 {
			return nil, internal.ErrUnknownSubmission
		}
		sub, err = subs[len(subs)-1], nil
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to load payment submission", err)
	}

	updated, err := s.decide(ctx, sub, admin, dto)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{Payment: updated}
	if o, err = s.orders.GetOrder(ctx, o.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to reload order after verification",
			"order_id", updated.OrderID,
			"error", err)
	} else {
		result.Order = o
	}
	return result, nil
}

func (s *Service) decide(ctx context.Context, sub *PaymentSubmission, admin *auth.User, dto VerifyPaymentDTO) (*PaymentSubmission, error) {
	ev := EventAdminReject
	if dto.IsConfirmation() {
		ev = EventAdminConfirm
	}
	if _, err := Transition(sub.Status, ev); err != nil {
		if sub.Status == StatusVerified {
			return nil, internal.ErrPaymentAlreadyVerified
		}
		return nil, err
	}

	adminID := admin.ID
	upd := TransitionUpdate{
		At:         s.now(),
		AdminNotes: dto.Notes(),
		VerifiedBy: &adminID,
	}
	if ev == EventAdminConfirm {
		utr := sub.UTR
		if corrected := dto.CorrectedUTR(); corrected != nil {
			utr = corrected
		}
		if utr != nil {
			if err := s.ensureUTRUnused(ctx, *utr, sub.ID); err != nil {
				return nil, err
			}
			upd.UTR = utr
		}
	}

	updated, ok, err := s.transition(ctx, sub, ev, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, gerr := s.repo.GetByID(ctx, sub.ID)
		if gerr == nil && current.Status == StatusVerified {
			return nil, internal.ErrPaymentAlreadyVerified
		}
		return nil, internal.ErrInvalidTransition
	}

	s.logger.InfoContext(ctx, "payment decision recorded",
		"submission_id", updated.ID,
		"order_id", updated.OrderID,
		"admin_id", admin.ID,
		"decision", dto.Status)
	return updated, nil
}

// ExpireStale moves every pending submission whose window closed before now to
// expired. Running it again over the same rows changes nothing.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		batch, err := s.repo.ListExpiredPending(ctx, now, s.cfg.SweepBatchSize)
		if err != nil {
			return total, internal.NewInternalError("failed to list stale payment submissions", err)
		}
		if len(batch) == 0 {
			break
		}

		moved := 0
		for _, sub := range batch {
			_, ok, err := s.transition(ctx, sub, EventExpire, TransitionUpdate{At: now})
			if err != nil {
				return total, err
			}
			if ok {
				moved++
			}
		}
		total += moved

		// rows lost to a racing admin left pending and drop out of the next batch
		if len(batch) < s.cfg.SweepBatchSize {
			break
		}
	}

	if total > 0 {
		s.logger.InfoContext(ctx, "stale payment submissions expired", "count", total)
	}
	return total, nil
}

// GetActiveSubmission returns the order's pending submission, or nil when there is none.
func (s *Service) GetActiveSubmission(ctx context.Context, orderID string) (*PaymentSubmission, error) {
	sub, err := s.repo.GetActiveByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			return nil, nil
		}
		return nil, internal.NewInternalError("failed to load payment submission", err)
	}
	return sub, nil
}

// GetStatus is read by polling clients. The view is cached briefly and its
// time dependent fields are recomputed on every read.
func (s *Service) GetStatus(ctx context.Context, caller *auth.User, orderID string) (*PaymentStatusView, error) {
	o, err := s.authorizedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := statusCachePrefix + o.ID

	var cached PaymentStatusView
	err = s.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		cached.Refresh(now)
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.logger.WarnContext(ctx, "payment status cache read failed", "order_id", o.ID, "error", err)
	}

	subs, err := s.repo.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load payment submissions", err)
	}

	view := BuildStatusView(o.ID, subs, s.cfg.MaxAttempts, now)
	s.cacheStatus(ctx, key, o.ID, view, stamp(subs))
	return view, nil
}

// cacheStatus stores view and then re-reads the order's rows. A write that
// committed after the view was built may already have dropped the key, so the
// stored copy is removed again when the rows moved on.
func (s *Service) cacheStatus(ctx context.Context, key, orderID string, view *PaymentStatusView, built int64) {
	if err := s.cache.SetJSON(ctx, key, view, s.cfg.StatusCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "payment status cache write failed", "order_id", orderID, "error", err)
		return
	}

	latest, err := s.repo.ListByOrder(ctx, orderID)
	if err == nil && stamp(latest) == built {
		return
	}
	s.logger.DebugContext(ctx, "payment status changed while caching", "order_id", orderID)
	s.invalidate(ctx, orderID)
}

// stamp grows on every ledger write for an order: new rows start at version 1
// and every transition bumps a version.
func stamp(subs []*PaymentSubmission) int64 {
	var n int64
	for _, sub := range subs {
		n += sub.Version
	}
	return n
}

// GetHistory lists every attempt for the order, oldest first.
func (s *Service) GetHistory(ctx context.Context, caller *auth.User, orderID string) ([]*PaymentSubmission, error) {
	o, err := s.authorizedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}

	subs, err := s.repo.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load payment submissions", err)
	}
	return subs, nil
}

// ListPending is the admin review queue, oldest submission first.
func (s *Service) ListPending(ctx context.Context, admin *auth.User, limit, offset int) ([]*PendingReview, error) {
	if err := s.policy.CanVerifyPayment(admin); err != nil {
		return nil, err
	}

	subs, err := s.repo.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list pending payments", err)
	}

	now := s.now()
	out := make([]*PendingReview, 0, len(subs))
	for _, sub := range subs {
		item := &PendingReview{PaymentSubmission: sub, IsExpired: sub.IsExpiredAt(now)}
		if s.files != nil {
			url, err := s.files.URL(ctx, sub.ScreenshotRef, s.cfg.ScreenshotURLTTL)
			if err != nil {
				s.logger.WarnContext(ctx, "failed to link payment screenshot",
					"submission_id", sub.ID,
					"error", err)
			} else {
				item.ScreenshotURL = url
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Service) authorizedOrder(ctx context.Context, caller *auth.User, orderID string) (*order.Order, error) {
	o, err := s.orders.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanViewOrder(caller, o.CustomerID); err != nil {
		return nil, err
	}
	return o, nil
}

func hasClosedAttempt(subs []*PaymentSubmission) bool {
	for _, sub := range subs {
		if sub.Status == StatusRejected || sub.Status == StatusExpired {
			return true
		}
	}
	return false
}
