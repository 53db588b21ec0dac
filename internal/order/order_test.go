package order_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/frahmantamala/upi-payments/internal/auth"
	orderDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/order"
	"github.com/frahmantamala/upi-payments/internal/order"
	orderPostgres "github.com/frahmantamala/upi-payments/internal/order/postgres"
	"github.com/frahmantamala/upi-payments/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestOrder(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Order Suite")
}

var _ = Describe("Order Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		svc      *order.Service
		customer *auth.User
		slogger  *slog.Logger
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&orderDatamodel.Order{})).To(Succeed())

		repo := orderPostgres.NewOrderRepository(db)
		svc = order.NewService(repo, auth.NewABACPolicy(nil), slogger)
		customer = &auth.User{ID: 7, Permissions: []string{auth.PermissionSubmitPayments}}

		Expect(repo.Create(ctx, &order.Order{
			ID:            "ORD-1001",
			CustomerID:    7,
			TotalAmount:   decimal.RequireFromString("1250.50"),
			Currency:      "INR",
			OrderStatus:   order.OrderStatusPending,
			PaymentStatus: order.PaymentStatusPending,
			PaymentMethod: order.PaymentMethodUPI,
		})).To(Succeed())
		Expect(repo.Create(ctx, &order.Order{
			ID:            "ORD-2002",
			CustomerID:    8,
			TotalAmount:   decimal.NewFromInt(499),
			Currency:      "INR",
			OrderStatus:   order.OrderStatusPending,
			PaymentStatus: order.PaymentStatusPending,
			PaymentMethod: order.PaymentMethodUPI,
		})).To(Succeed())
	})

	Describe("GetOrderForUser", func() {
		It("should return the caller's order with its decimal total", func() {
			o, err := svc.GetOrderForUser(ctx, "ORD-1001", customer)

			Expect(err).NotTo(HaveOccurred())
			Expect(o.TotalAmount.Equal(decimal.RequireFromString("1250.50"))).To(BeTrue())
			Expect(o.FormattedTotal()).To(Equal("₹1250.50"))
		})

		It("should hide other customers' orders", func() {
			_, err := svc.GetOrderForUser(ctx, "ORD-2002", customer)

			Expect(errors.Is(err, internal.ErrUnauthorizedAccess)).To(BeTrue())
		})

		It("should report unknown orders", func() {
			_, err := svc.GetOrderForUser(ctx, "ORD-404", customer)

			Expect(errors.Is(err, internal.ErrUnknownOrder)).To(BeTrue())
		})
	})

	Describe("ApplyPaymentStatus", func() {
		It("should update only the payment status when no order status is given", func() {
			o, err := svc.ApplyPaymentStatus(ctx, "ORD-1001", order.PaymentStatusSubmitted, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(o.PaymentStatus).To(Equal(order.PaymentStatusSubmitted))
			Expect(o.OrderStatus).To(Equal(order.OrderStatusPending))
		})

		It("should confirm the order alongside a verified payment", func() {
			confirmed := order.OrderStatusConfirmed
			o, err := svc.ApplyPaymentStatus(ctx, "ORD-1001", order.PaymentStatusVerified, &confirmed)

			Expect(err).NotTo(HaveOccurred())
			Expect(o.PaymentStatus).To(Equal(order.PaymentStatusVerified))
			Expect(o.OrderStatus).To(Equal(order.OrderStatusConfirmed))
		})

		It("should report unknown orders", func() {
			_, err := svc.ApplyPaymentStatus(ctx, "ORD-404", order.PaymentStatusSubmitted, nil)

			Expect(errors.Is(err, internal.ErrUnknownOrder)).To(BeTrue())
		})
	})

	Describe("Handler", func() {
		var router *chi.Mux

		BeforeEach(func() {
			h := &order.Handler{BaseHandler: transport.NewBaseHandler(slogger), Service: svc}
			router = chi.NewRouter()
			router.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), customer)))
				})
			})
			router.Get("/orders", h.ListOrders)
			router.Get("/orders/{id}", h.GetOrder)
		})

		It("should wrap the order in a success envelope", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-1001", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body struct {
				Success bool        `json:"success"`
				Data    order.Order `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Success).To(BeTrue())
			Expect(body.Data.ID).To(Equal("ORD-1001"))
			Expect(body.Data.PaymentMethod).To(Equal(order.PaymentMethodUPI))
		})

		It("should answer 403 for another customer's order", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-2002", nil))

			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(rec.Body.String()).To(ContainSubstring(`"code":"UNAUTHORIZED_ACCESS"`))
		})

		It("should list only the caller's orders", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body struct {
				Data []order.Order `json:"data"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Data).To(HaveLen(1))
			Expect(body.Data[0].ID).To(Equal("ORD-1001"))
		})
	})
})
