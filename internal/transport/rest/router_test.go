package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/notification"
	"github.com/frahmantamala/upi-payments/internal/order"
	"github.com/frahmantamala/upi-payments/internal/submission"
	"github.com/frahmantamala/upi-payments/internal/transport/rest"
	"github.com/frahmantamala/upi-payments/internal/transport/swagger"
	"github.com/frahmantamala/upi-payments/internal/upiconfig"
	"github.com/frahmantamala/upi-payments/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "REST Router Suite")
}

// stubAuth accepts any bearer token and resolves it to the configured user.
type stubAuth struct {
	user *auth.User
}

func (s *stubAuth) Authenticate(auth.LoginDTO) (auth.AuthTokens, error) {
	return auth.AuthTokens{}, errors.New("not used")
}

func (s *stubAuth) RefreshTokens(string) (auth.AuthTokens, error) {
	return auth.AuthTokens{}, errors.New("not used")
}

func (s *stubAuth) ValidateAccessToken(string) (*auth.Claims, error) {
	return &auth.Claims{UserID: "7", Email: s.user.Email}, nil
}

func (s *stubAuth) GetUserWithPermissions(int64) (*auth.User, error) {
	return s.user, nil
}

var _ = Describe("Router", func() {
	var (
		logger   *slog.Logger
		authStub *stubAuth
		router   *chi.Mux
		doc      *swagger.Document
	)

	fullHandlers := func(checks ...rest.HealthCheck) rest.Handlers {
		return rest.Handlers{
			Auth:         auth.NewHandler(authStub),
			User:         user.NewHandler(nil),
			Order:        order.NewHandler(nil),
			Submission:   submission.NewHandler(nil, 5<<20),
			Notification: notification.NewHandler(nil),
			UPIConfig:    upiconfig.NewHandler(nil),
			Health:       rest.NewHealthHandler(checks...),
			OpenAPI:      doc,
		}
	}

	BeforeEach(func() {
		var err error
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		authStub = &stubAuth{user: &auth.User{ID: 7, Email: "asha@mail.com", Permissions: []string{auth.PermissionSubmitPayments}}}
		doc, err = swagger.Load(context.Background(), "../../../api/openapi.yml")
		Expect(err).NotTo(HaveOccurred())

		router = chi.NewRouter()
		router.NotFound(rest.NotFound)
		rest.RegisterAllRoutes(router, fullHandlers(), rest.Options{AllowedOrigins: []string{"http://localhost:3000"}}, logger)
	})

	It("should describe every API route in the OpenAPI document", func() {
		var missing []string
		err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			if !strings.HasPrefix(route, "/api/") {
				return nil
			}
			path := strings.TrimPrefix(route, "/api")
			if !doc.HasOperation(method, path) {
				missing = append(missing, method+" "+route)
			}
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(missing).To(BeEmpty())
	})

	It("should serve the OpenAPI document", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("UPI Payments API"))
	})

	It("should require a token for uploads", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/upi-payments/upload", nil))

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Body.String()).To(ContainSubstring(`"success":false`))
		Expect(rec.Header().Get("X-Request-ID")).NotTo(BeEmpty())
	})

	It("should keep customers out of the review queue", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/upi-payments/pending", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("should keep users without submit_payments from uploading", func() {
		authStub.user.Permissions = []string{auth.PermissionViewPayments}
		req := httptest.NewRequest(http.MethodPost, "/api/upi-payments/upload", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("should keep customers from changing the UPI account", func() {
		req := httptest.NewRequest(http.MethodPut, "/api/upi/admin/config", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("should answer CORS preflight for allowed origins", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/upi-payments/upload", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))
	})

	It("should answer unknown routes with the error envelope", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(rec.Body.String()).To(ContainSubstring("NOT_FOUND"))
	})

	Describe("health", func() {
		get := func(checks ...rest.HealthCheck) (*httptest.ResponseRecorder, rest.HealthResponse) {
			r := chi.NewRouter()
			rest.RegisterAllRoutes(r, rest.Handlers{Health: rest.NewHealthHandler(checks...)}, rest.Options{}, logger)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			var resp rest.HealthResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			return rec, resp
		}
		ok := func(context.Context) error { return nil }
		down := func(context.Context) error { return errors.New("connection refused") }

		It("should be healthy when every dependency answers", func() {
			rec, resp := get(rest.HealthCheck{Name: "postgres", Check: ok}, rest.HealthCheck{Name: "ocr", Optional: true, Check: ok})

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.Status).To(Equal(rest.HealthHealthy))
		})

		It("should only degrade when OCR is down", func() {
			rec, resp := get(rest.HealthCheck{Name: "postgres", Check: ok}, rest.HealthCheck{Name: "ocr", Optional: true, Check: down})

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(resp.Status).To(Equal(rest.HealthDegraded))
			Expect(resp.Components["ocr"].Message).To(Equal("connection refused"))
		})

		It("should be unavailable when the database is down", func() {
			rec, resp := get(rest.HealthCheck{Name: "postgres", Check: down}, rest.HealthCheck{Name: "ocr", Optional: true, Check: down})

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(resp.Status).To(Equal(rest.HealthUnhealthy))
		})
	})
})
