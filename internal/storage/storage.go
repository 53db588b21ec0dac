package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/upi-payments/internal"
)

const (
	DriverS3     = "s3"
	DriverMemory = "memory"
)

var ErrObjectNotFound = errors.New("storage: object not found")

// FileRef identifies a stored screenshot. Key is the only part needed to read
// the object back; the rest is recorded alongside the submission.
type FileRef struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	Driver      string `json:"driver"`
}

type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (FileRef, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a short lived link an admin can open to review the object.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
}

// New builds the storage driver selected in cfg.
func New(ctx context.Context, cfg internal.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Driver {
	case DriverS3:
		return NewS3Storage(ctx, cfg, logger)
	case DriverMemory, "":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
