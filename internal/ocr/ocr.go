package ocr

import (
	"context"

	"github.com/frahmantamala/upi-payments/internal/storage"
)

// Result is what the submission ledger records from a screenshot. Every field
// is advisory; nothing here changes a submission's status on its own.
type Result struct {
	RawText     string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	UTR         *string `json:"utr,omitempty"`
	UTRDetected bool    `json:"utrDetected"`
	LineCount   int     `json:"lineCount"`
	// Error is set when the engine could not be reached and the result was degraded.
	Error string `json:"-"`
}

// Extractor reads a stored screenshot and looks for a UTR in it.
type Extractor interface {
	ExtractUTR(ctx context.Context, ref storage.FileRef) (*Result, error)
}

// Degraded is the result recorded when the OCR engine failed: no UTR, zero
// confidence, routed to manual review.
func Degraded(err error) *Result {
	r := &Result{}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// NewResult derives the UTR fields from recognised text.
func NewResult(text string, confidence float64) *Result {
	utr, ok := ParseUTR(text)
	r := &Result{
		RawText:     text,
		Confidence:  clampConfidence(confidence),
		UTRDetected: ok,
		LineCount:   countLines(text),
	}
	if ok {
		r.UTR = &utr
	}
	return r
}

// DisabledExtractor is used when no OCR engine is configured. Every
// screenshot goes to manual review.
type DisabledExtractor struct{}

func (DisabledExtractor) ExtractUTR(context.Context, storage.FileRef) (*Result, error) {
	return nil, ErrDisabled
}

func clampConfidence(c float64) float64 {
	switch {
	case c != c: // NaN
		return 0
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
