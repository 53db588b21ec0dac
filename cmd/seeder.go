package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/upi-payments/internal/auth"
	"github.com/frahmantamala/upi-payments/internal/order"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed users, permissions, orders and the UPI receiving account for local development.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB, cfg.Observability.Logging.Level)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			if err := clearSeedData(db); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		if err := seed(db); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
		fmt.Println("Seeding complete")
	},
}

type seedUser struct {
	Email       string
	Name        string
	Phone       string
	Permissions []string
}

var seedPermissions = []struct {
	Name string
	Desc string
}{
	{auth.PermissionAdmin, "full administrator"},
	{auth.PermissionVerifyPayments, "Can confirm or reject payment screenshots"},
	{auth.PermissionSubmitPayments, "Can upload payment screenshots"},
	{auth.PermissionViewPayments, "Can view payments of any order"},
	{auth.PermissionManageUPIConfig, "Can change the UPI receiving account"},
}

var seedUsers = []seedUser{
	{
		Email: "admin@mail.com",
		Name:  "Store Admin",
		Phone: "+919800000001",
		Permissions: []string{
			auth.PermissionAdmin,
			auth.PermissionVerifyPayments,
			auth.PermissionViewPayments,
			auth.PermissionManageUPIConfig,
		},
	},
	{
		Email:       "asha@mail.com",
		Name:        "Asha Customer",
		Phone:       "+919800000002",
		Permissions: []string{auth.PermissionSubmitPayments},
	},
}

var seedOrders = []struct {
	ID     string
	Amount string
}{
	{"ORD-1001", "1250.50"},
	{"ORD-1002", "499.00"},
	{"ORD-1003", "8999.00"},
}

func seed(db *gorm.DB) error {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, p := range seedPermissions {
			err := tx.Exec(`INSERT INTO permissions (name, description, created_at) VALUES (?, ?, now())
				ON CONFLICT (name) DO NOTHING`, p.Name, p.Desc).Error
			if err != nil {
				return fmt.Errorf("insert permission %s: %w", p.Name, err)
			}
		}

		userIDs := make(map[string]int64, len(seedUsers))
		for _, u := range seedUsers {
			err := tx.Exec(`INSERT INTO users (email, name, phone, password_hash, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, true, now(), now()) ON CONFLICT (email) DO NOTHING`,
				u.Email, u.Name, u.Phone, string(hash)).Error
			if err != nil {
				return fmt.Errorf("insert user %s: %w", u.Email, err)
			}

			var id int64
			if err := tx.Raw("SELECT id FROM users WHERE email = ?", u.Email).Row().Scan(&id); err != nil {
				return fmt.Errorf("lookup user %s: %w", u.Email, err)
			}
			userIDs[u.Email] = id

			for _, perm := range u.Permissions {
				err := tx.Exec(`INSERT INTO user_permissions (user_id, permission_id, granted_by, created_at)
					SELECT ?, id, NULL, now() FROM permissions WHERE name = ?
					ON CONFLICT (user_id, permission_id) DO NOTHING`, id, perm).Error
				if err != nil {
					return fmt.Errorf("grant %s to %s: %w", perm, u.Email, err)
				}
			}
			fmt.Printf("Seeded user %s with %v\n", u.Email, u.Permissions)
		}

		customerID := userIDs["asha@mail.com"]
		for _, o := range seedOrders {
			amount, err := decimal.NewFromString(o.Amount)
			if err != nil {
				return fmt.Errorf("order %s amount: %w", o.ID, err)
			}
			err = tx.Exec(`INSERT INTO orders (id, customer_id, total_amount, currency, order_status, payment_status, payment_method, created_at, updated_at)
				VALUES (?, ?, ?, 'INR', ?, ?, ?, now(), now()) ON CONFLICT (id) DO NOTHING`,
				o.ID, customerID, amount, order.OrderStatusPending, order.PaymentStatusPending, order.PaymentMethodUPI).Error
			if err != nil {
				return fmt.Errorf("insert order %s: %w", o.ID, err)
			}
		}
		fmt.Printf("Seeded %d orders for asha@mail.com\n", len(seedOrders))

		var configured int64
		if err := tx.Raw("SELECT COUNT(*) FROM upi_configs WHERE is_active = TRUE").Row().Scan(&configured); err != nil {
			return fmt.Errorf("count upi configs: %w", err)
		}
		if configured == 0 {
			err := tx.Exec(`INSERT INTO upi_configs (upi_id, payee_name, instructions, is_active, updated_by, created_at, updated_at)
				VALUES (?, ?, ?, TRUE, ?, now(), now())`,
				"store@okaxis", "Demo Store", "Pay the exact order amount and upload the confirmation screenshot.",
				userIDs["admin@mail.com"]).Error
			if err != nil {
				return fmt.Errorf("insert upi config: %w", err)
			}
			fmt.Println("Seeded UPI receiving account store@okaxis")
		}
		return nil
	})
}

func clearSeedData(db *gorm.DB) error {
	tables := []string{"notifications", "upi_payments", "orders", "upi_configs", "user_permissions", "permissions", "users"}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			if err := tx.Exec("DELETE FROM " + t).Error; err != nil {
				return fmt.Errorf("clear %s: %w", t, err)
			}
		}
		return nil
	})
}
