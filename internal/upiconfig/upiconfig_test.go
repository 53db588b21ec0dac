package upiconfig_test

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

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	upiconfigDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/upiconfig"
	"github.com/frahmantamala/upi-payments/internal/upiconfig"
	upiconfigPostgres "github.com/frahmantamala/upi-payments/internal/upiconfig/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUPIConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "UPI Config Suite")
}

func strPtr(s string) *string { return &s }

var _ = Describe("UPI config", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		repo    *upiconfigPostgres.ConfigRepository
		service *upiconfig.Service
		admin   *auth.User
		buyer   *auth.User
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&upiconfigDatamodel.UPIConfig{})).To(Succeed())

		repo = upiconfigPostgres.NewConfigRepository(db)
		service = upiconfig.NewService(repo, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
		admin = &auth.User{ID: 1, Email: "admin@example.com", Permissions: []string{auth.PermissionAdmin}}
		buyer = &auth.User{ID: 7, Email: "buyer@example.com", Permissions: []string{auth.PermissionSubmitPayments}}
	})

	Describe("Service", func() {
		It("should report a missing configuration", func() {
			_, err := service.GetActive(ctx)

			Expect(errors.Is(err, internal.ErrUPIConfigNotFound)).To(BeTrue())
		})

		It("should store the account and return it as active", func() {
			// Given
			dto := upiconfig.UpdateConfigDTO{
				UPIID:        " shop@okaxis ",
				PayeeName:    "Sharma Stores",
				Instructions: strPtr("Pay the exact order amount"),
			}

			// When
			saved, err := service.Update(ctx, admin, dto)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.ID).NotTo(BeZero())
			Expect(*saved.UpdatedBy).To(Equal(int64(1)))
			active, err := service.GetActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active.UPIID).To(Equal("shop@okaxis"))
			Expect(*active.Instructions).To(Equal("Pay the exact order amount"))
		})

		It("should keep exactly one active configuration", func() {
			_, err := service.Update(ctx, admin, upiconfig.UpdateConfigDTO{UPIID: "old@okhdfc", PayeeName: "Old"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Update(ctx, admin, upiconfig.UpdateConfigDTO{UPIID: "new@okicici", PayeeName: "New"})
			Expect(err).NotTo(HaveOccurred())

			var active int64
			Expect(db.Model(&upiconfigDatamodel.UPIConfig{}).Where("is_active = ?", true).Count(&active).Error).To(Succeed())
			Expect(active).To(Equal(int64(1)))
			current, err := service.GetActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.UPIID).To(Equal("new@okicici"))
		})

		It("should allow a user holding manage_upi_config", func() {
			manager := &auth.User{ID: 3, Permissions: []string{auth.PermissionManageUPIConfig}}

			_, err := service.Update(ctx, manager, upiconfig.UpdateConfigDTO{UPIID: "shop@ybl", PayeeName: "Shop"})

			Expect(err).NotTo(HaveOccurred())
		})

		It("should refuse customers", func() {
			_, err := service.Update(ctx, buyer, upiconfig.UpdateConfigDTO{UPIID: "shop@ybl", PayeeName: "Shop"})

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusForbidden))
		})

		DescribeTable("should reject invalid input",
			func(dto upiconfig.UpdateConfigDTO) {
				_, err := service.Update(ctx, admin, dto)

				var appErr *internal.AppError
				Expect(errors.As(err, &appErr)).To(BeTrue())
				Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			},
			Entry("malformed UPI ID", upiconfig.UpdateConfigDTO{UPIID: "not-a-vpa", PayeeName: "Shop"}),
			Entry("missing payee", upiconfig.UpdateConfigDTO{UPIID: "shop@ybl"}),
			Entry("long instructions", upiconfig.UpdateConfigDTO{UPIID: "shop@ybl", PayeeName: "Shop", Instructions: strPtr(strings.Repeat("x", 1001))}),
		)
	})

	Describe("Handler", func() {
		var router chi.Router

		BeforeEach(func() {
			h := upiconfig.NewHandler(service)
			router = chi.NewRouter()
			router.Get("/upi/config", h.GetConfig)
			router.With(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), admin)))
				})
			}).Put("/upi/admin/config", h.UpdateConfig)
		})

		It("should return 404 before any account is configured", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upi/config", nil))

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should update and then serve the account", func() {
			body := `{"upiId":"shop@okaxis","payeeName":"Sharma Stores"}`
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/upi/admin/config", strings.NewReader(body)))
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upi/config", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp struct {
				Success bool             `json:"success"`
				Data    upiconfig.Config `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Data.PayeeName).To(Equal("Sharma Stores"))
		})
	})
})
