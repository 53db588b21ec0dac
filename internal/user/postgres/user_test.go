package postgres_test

import (
	"errors"
	"testing"

	userDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/user"
	"github.com/frahmantamala/upi-payments/internal/user"
	userPostgres "github.com/frahmantamala/upi-payments/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestUserPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Postgres Suite")
}

var _ = Describe("User Repository", func() {
	var (
		db   *gorm.DB
		repo *userPostgres.Repository
		svc  *user.Service
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&userDatamodel.User{}, &userDatamodel.Permission{}, &userDatamodel.UserPermission{})).To(Succeed())

		repo = userPostgres.NewRepository(db)
		svc = user.NewService(repo)

		Expect(db.Create(&userDatamodel.User{ID: 1, Email: "admin@store.test", Name: "Admin", PasswordHash: "x", IsActive: true}).Error).To(Succeed())
		Expect(db.Create(&userDatamodel.User{ID: 2, Email: "priya@store.test", Name: "Priya", PasswordHash: "x", IsActive: true}).Error).To(Succeed())
		Expect(db.Create(&userDatamodel.Permission{ID: 1, Name: "admin"}).Error).To(Succeed())
		Expect(db.Create(&userDatamodel.Permission{ID: 2, Name: "verify_payments"}).Error).To(Succeed())
		Expect(db.Create(&userDatamodel.UserPermission{UserID: 1, PermissionID: 1}).Error).To(Succeed())
		Expect(db.Create(&userDatamodel.UserPermission{UserID: 1, PermissionID: 2}).Error).To(Succeed())
	})

	It("should load a user with sorted permissions", func() {
		u, err := svc.GetByID(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Email).To(Equal("admin@store.test"))
		Expect(u.Permissions).To(Equal([]string{"admin", "verify_payments"}))
		Expect(u.Role()).To(Equal("admin"))
	})

	It("should return an empty permission list for customers", func() {
		u, err := svc.GetByID(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Permissions).To(BeEmpty())
		Expect(u.Role()).To(Equal("customer"))
	})

	It("should map a missing row to ErrNotFound", func() {
		_, err := repo.GetByID(99)
		Expect(errors.Is(err, user.ErrNotFound)).To(BeTrue())

		_, err = svc.GetByID(99)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(Equal("User not found"))
	})
})
