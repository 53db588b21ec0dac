package intake

import (
	"context"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const DefaultKeyPrefix = "payment-screenshots"

// allowedTypes maps accepted screenshot types to the extension used in the object key.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var mimeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
}

// Upload is a screenshot as received from the client.
type Upload struct {
	Data             []byte
	DeclaredMimeType string
	Size             int64
	Filename         string
}

// Prepared is an upload that passed every check and is ready to be stored.
type Prepared struct {
	OrderID     string
	CustomerID  int64
	Data        []byte
	ContentType string
	Extension   string
	Filename    string
}

type StoredFile struct {
	OrderID    string
	CustomerID int64
	Filename   string
	Ref        storage.FileRef
}

// OrderLookup resolves the customer owning an order. It returns
// internal.ErrUnknownOrder when the order does not exist.
type OrderLookup interface {
	OrderOwner(ctx context.Context, orderID string) (int64, error)
}

type AccessPolicy interface {
	CanSubmitForOrder(u *auth.User, ownerID int64) error
}

type Config struct {
	MaxFileSize int64
	KeyPrefix   string
}

type Service struct {
	orders    OrderLookup
	policy    AccessPolicy
	store     storage.Storage
	maxSize   int64
	keyPrefix string
	logger    *slog.Logger
	newID     func() string
}

func NewService(orders OrderLookup, policy AccessPolicy, store storage.Storage, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 << 20
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &Service{
		orders:    orders,
		policy:    policy,
		store:     store,
		maxSize:   cfg.MaxFileSize,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		logger:    logger,
		newID:     func() string { return uuid.New().String() },
	}
}

// MaxFileSize is the upload limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.maxSize
}

// SubmitScreenshot validates and stores a screenshot in one step.
func (s *Service) SubmitScreenshot(ctx context.Context, orderID string, caller *auth.User, upload Upload) (*StoredFile, error) {
	prepared, err := s.Validate(ctx, orderID, caller, upload)
	if err != nil {
		return nil, err
	}
	return s.Store(ctx, prepared)
}

// Validate runs every intake check without touching storage.
func (s *Service) Validate(ctx context.Context, orderID string, caller *auth.User, upload Upload) (*Prepared, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, internal.ErrMissingOrderID
	}

	ownerID, err := s.orders.OrderOwner(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanSubmitForOrder(caller, ownerID); err != nil {
		s.logger.WarnContext(ctx, "screenshot rejected: caller does not own order",
			"order_id", orderID,
			"owner_id", ownerID)
		return nil, err
	}

	declared, ok := NormalizeMimeType(upload.DeclaredMimeType)
	if !ok {
		return nil, internal.ErrInvalidFileType
	}

	size := upload.Size
	if n := int64(len(upload.Data)); n > size {
		size = n
	}
	if size > s.maxSize {
		return nil, internal.FileTooLarge(s.maxSize)
	}
	if len(upload.Data) == 0 {
		return nil, internal.NewValidationFieldError("screenshot", "screenshot is empty", internal.ErrCodeValidationFailed)
	}

	sniffed, ext, ok := sniff(upload.Data)
	if !ok {
		s.logger.WarnContext(ctx, "screenshot rejected: content does not match an image type",
			"order_id", orderID,
			"declared", declared,
			"detected", mimetype.Detect(upload.Data).String())
		return nil, internal.ErrInvalidFileType
	}

	filename := ""
	if upload.Filename != "" {
		filename = path.Base(upload.Filename)
	}

	return &Prepared{
		OrderID:     orderID,
		CustomerID:  ownerID,
		Data:        upload.Data,
		ContentType: sniffed,
		Extension:   ext,
		Filename:    filename,
	}, nil
}

// Store writes a validated upload under <prefix>/<orderId>/<uuid><ext>.
func (s *Service) Store(ctx context.Context, p *Prepared) (*StoredFile, error) {
	key := s.ObjectKey(p.OrderID, p.Extension)

	ref, err := s.store.Put(ctx, key, p.Data, p.ContentType)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to store payment screenshot",
			"order_id", p.OrderID,
			"key", key,
			"error", err)
		return nil, internal.ErrStorageFailed.WithCause(err)
	}

	s.logger.InfoContext(ctx, "payment screenshot stored",
		"order_id", p.OrderID,
		"key", ref.Key,
		"size", ref.Size,
		"content_type", ref.ContentType)

	return &StoredFile{
		OrderID:    p.OrderID,
		CustomerID: p.CustomerID,
		Filename:   p.Filename,
		Ref:        ref,
	}, nil
}

func (s *Service) ObjectKey(orderID, ext string) string {
	return s.keyPrefix + "/" + orderID + "/" + s.newID() + ext
}

// NormalizeMimeType strips parameters, folds aliases and reports whether the
// result is an accepted screenshot type.
func NormalizeMimeType(declared string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(declared))
	if err != nil {
		return "", false
	}
	mediaType = strings.ToLower(mediaType)
	if alias, ok := mimeAliases[mediaType]; ok {
		mediaType = alias
	}
	_, ok := allowedTypes[mediaType]
	return mediaType, ok
}

func sniff(data []byte) (string, string, bool) {
	detected := mimetype.Detect(data)
	for mediaType, ext := range allowedTypes {
		if detected.Is(mediaType) {
			return mediaType, ext, true
		}
	}
	return "", "", false
}
