package swagger

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"
)

const DocumentURL = "/openapi.yml"

// Document is the parsed and validated API description served to clients.
type Document struct {
	API *openapi3.T
	raw []byte
}

// Load reads the OpenAPI document at path and validates it so a broken file
// fails at startup rather than in the browser.
func Load(ctx context.Context, path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read openapi document: %w", err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	return &Document{API: doc, raw: raw}, nil
}

// HasOperation reports whether the document describes method on path.
func (d *Document) HasOperation(method, path string) bool {
	item := d.API.Paths.Find(path)
	if item == nil {
		return false
	}
	return item.GetOperation(method) != nil
}

// ServeHTTP serves the raw document.
func (d *Document) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(d.raw)
}

// Handler serves the Swagger UI pointed at the document.
func Handler() http.Handler {
	return httpSwagger.Handler(
		httpSwagger.URL(DocumentURL),
	)
}
