package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/storage"
)

var ErrDisabled = errors.New("ocr: engine not configured")

// Client talks to the external OCR service over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	store      storage.Storage
	logger     *slog.Logger
}

type recognizeResponse struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

func NewClient(baseURL string, timeout time.Duration, store storage.Storage, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Timeout:    timeout,
		store:      store,
		logger:     logger,
	}
}

// ExtractUTR loads the screenshot from storage and runs it through the engine.
// Any failure is returned as internal.ErrOCRUnavailable.
func (c *Client) ExtractUTR(ctx context.Context, ref storage.FileRef) (*Result, error) {
	data, err := c.store.Get(ctx, ref.Key)
	if err != nil {
		return nil, internal.ErrOCRUnavailable.WithCause(fmt.Errorf("load screenshot: %w", err))
	}
	return c.Extract(ctx, data, path.Base(ref.Key), ref.ContentType)
}

func (c *Client) Extract(ctx context.Context, image []byte, filename, contentType string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.recognize(ctx, image, filename, contentType)
	if err != nil {
		c.logger.WarnContext(ctx, "ocr request failed",
			"error", err,
			"elapsed", time.Since(start))
		return nil, internal.ErrOCRUnavailable.WithCause(err)
	}

	confidence := 0.0
	if resp.Confidence != nil {
		confidence = *resp.Confidence
	}
	result := NewResult(resp.Text, confidence)

	c.logger.InfoContext(ctx, "ocr completed",
		"utr_detected", result.UTRDetected,
		"confidence", result.Confidence,
		"lines", result.LineCount,
		"elapsed", time.Since(start))

	return result, nil
}

func (c *Client) recognize(ctx context.Context, image []byte, filename, contentType string) (*recognizeResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/ocr/image", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("OCR service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// HealthCheck checks if the OCR service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OCR service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
