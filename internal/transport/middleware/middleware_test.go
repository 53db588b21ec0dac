package middleware_test

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frahmantamala/upi-payments/internal/transport/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("LoggingMiddleware", func() {
	var (
		out    *bytes.Buffer
		logger *slog.Logger
		seen   []byte
		next   http.Handler
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
		seen = nil
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true,"data":{"access_token":"tok-zz9"}}`))
		})
	})

	It("should mask credentials but still hand the body to the handler", func() {
		body := `{"email":"asha@mail.com","password":"hunter2"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer secret-token")

		middleware.LoggingMiddleware(logger)(next).ServeHTTP(httptest.NewRecorder(), req)

		Expect(string(seen)).To(Equal(body))
		Expect(out.String()).To(ContainSubstring("asha@mail.com"))
		Expect(out.String()).NotTo(ContainSubstring("hunter2"))
		Expect(out.String()).NotTo(ContainSubstring("secret-token"))
		Expect(out.String()).NotTo(ContainSubstring("tok-zz9"))
		Expect(out.String()).To(ContainSubstring("status_code=201"))
	})

	It("should not buffer screenshot uploads", func() {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		Expect(mw.WriteField("orderId", "ORD-1001")).To(Succeed())
		part, err := mw.CreateFormFile("screenshot", "shot.png")
		Expect(err).NotTo(HaveOccurred())
		_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nPIXELDATA"))
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/api/upi-payments/upload", bytes.NewReader(buf.Bytes()))
		req.Header.Set("Content-Type", mw.FormDataContentType())

		middleware.LoggingMiddleware(logger)(next).ServeHTTP(httptest.NewRecorder(), req)

		Expect(seen).To(Equal(buf.Bytes()))
		Expect(out.String()).NotTo(ContainSubstring("PIXELDATA"))
		Expect(out.String()).To(ContainSubstring("[omitted multipart/form-data"))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("should turn a panic into a 500 envelope", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		h := middleware.RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("nil order")
		}))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/ORD-1", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring(`"success":false`))
		Expect(rec.Body.String()).To(ContainSubstring("INTERNAL_ERROR"))
		Expect(rec.Body.String()).NotTo(ContainSubstring("nil order"))
	})
})

var _ = Describe("RequestID", func() {
	It("should echo a caller supplied id", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()

		middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

		Expect(rec.Header().Get(middleware.RequestIDHeader)).To(Equal("req-42"))
	})
})

var _ = Describe("CORS", func() {
	var next http.Handler

	BeforeEach(func() {
		next = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	serve := func(allowed []string, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/upi/config", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		middleware.CORS(allowed)(next).ServeHTTP(rec, req)
		return rec
	}

	It("should echo a listed origin and allow credentials", func() {
		rec := serve([]string{"https://shop.example"}, "https://shop.example")

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://shop.example"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("should answer a wildcard with a literal star and no credentials", func() {
		rec := serve([]string{"*"}, "https://evil.example")

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(rec.Header().Values("Access-Control-Allow-Credentials")).To(BeEmpty())
	})

	It("should still credential a listed origin next to a wildcard", func() {
		rec := serve([]string{"*", "https://shop.example"}, "https://shop.example")

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://shop.example"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("should not allow an unlisted origin", func() {
		rec := serve([]string{"https://shop.example"}, "https://evil.example")

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})
