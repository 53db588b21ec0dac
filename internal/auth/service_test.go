package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/frahmantamala/upi-payments/internal"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

type mockUserRepository struct {
	users         map[string]string // email -> password hash
	userIDs       map[string]string // email -> userID
	usersByID     map[int64]*User
	returnError   bool
	errorToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)

	return &mockUserRepository{
		users: map[string]string{
			"customer@example.com": string(hashedPassword),
			"admin@example.com":    string(hashedPassword),
			"reviewer@example.com": string(hashedPassword),
		},
		userIDs: map[string]string{
			"customer@example.com": "1",
			"admin@example.com":    "2",
			"reviewer@example.com": "3",
		},
		usersByID: map[int64]*User{
			1: {ID: 1, Email: "customer@example.com", Permissions: []string{PermissionSubmitPayments}},
			2: {ID: 2, Email: "admin@example.com", Permissions: []string{PermissionAdmin}},
			3: {ID: 3, Email: "reviewer@example.com", Permissions: []string{PermissionVerifyPayments}},
		},
	}
}

func (m *mockUserRepository) GetPasswordForUsername(username string) (string, string, error) {
	if m.returnError {
		return "", "", m.errorToReturn
	}

	if hash, exists := m.users[username]; exists {
		if userID, userExists := m.userIDs[username]; userExists {
			return hash, userID, nil
		}
	}
	return "", "", errors.New("user not found")
}

func (m *mockUserRepository) GetUserWithPermissions(userID int64) (*User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}

	if user, exists := m.usersByID[userID]; exists {
		return user, nil
	}
	return nil, errors.New("user not found")
}

func (m *mockUserRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service       *Service
		mockRepo      *mockUserRepository
		tokenGen      *JWTTokenGenerator
		accessSecret  string        = "test-access-secret"
		refreshSecret string        = "test-refresh-secret"
		accessTTL     time.Duration = 15 * time.Minute
		refreshTTL    time.Duration = 24 * time.Hour
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockUserRepository()
		tokenGen = NewJWTTokenGenerator(accessSecret, refreshSecret, accessTTL, refreshTTL)
		service = NewService(mockRepo, tokenGen, bcrypt.MinCost)
	})

	ginkgo.Describe("Authenticate", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return bearer access and refresh tokens", func() {
				// Given
				dto := LoginDTO{
					Email:    "customer@example.com",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.Equal(tokens.RefreshToken))
				gomega.Expect(tokens.TokenType).To(gomega.Equal("Bearer"))
				gomega.Expect(tokens.ExpiresIn).To(gomega.Equal(int64(accessTTL.Seconds())))
			})

			ginkgo.It("should carry user id and email in the access token", func() {
				// Given
				dto := LoginDTO{
					Email:    "admin@example.com",
					Password: "correct_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				claims, err := service.ValidateAccessToken(tokens.AccessToken)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.UserID).To(gomega.Equal("2"))
				gomega.Expect(claims.Email).To(gomega.Equal("admin@example.com"))
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return error for unknown email", func() {
				// Given
				dto := LoginDTO{
					Email:    "nobody@example.com",
					Password: "any_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should return error for wrong password", func() {
				// Given
				dto := LoginDTO{
					Email:    "customer@example.com",
					Password: "wrong_password",
				}

				// When
				tokens, err := service.Authenticate(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
				gomega.Expect(tokens.RefreshToken).To(gomega.BeEmpty())
			})

			ginkgo.It("should hide repository failures behind invalid credentials", func() {
				// Given
				mockRepo.setError(errors.New("database error"))

				// When
				_, err := service.Authenticate(LoginDTO{Email: "customer@example.com", Password: "correct_password"})

				// Then
				gomega.Expect(err).To(gomega.Equal(ErrInvalidCredentials))
			})
		})

		ginkgo.Context("when input validation fails", func() {
			ginkgo.It("should reject an empty email", func() {
				// When
				_, err := service.Authenticate(LoginDTO{Password: "password"})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("email is required"))
			})

			ginkgo.It("should reject a malformed email", func() {
				// When
				_, err := service.Authenticate(LoginDTO{Email: "not-an-email", Password: "password"})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("valid email"))
			})

			ginkgo.It("should reject an empty password", func() {
				// When
				_, err := service.Authenticate(LoginDTO{Email: "customer@example.com"})

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("password is required"))
			})
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		var validRefreshToken string

		ginkgo.BeforeEach(func() {
			tokens, err := service.Authenticate(LoginDTO{Email: "customer@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			validRefreshToken = tokens.RefreshToken
		})

		ginkgo.It("should preserve user information in new tokens", func() {
			// When
			newTokens, err := service.RefreshTokens(validRefreshToken)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			claims, err := service.ValidateAccessToken(newTokens.AccessToken)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.UserID).To(gomega.Equal("1"))
			gomega.Expect(claims.Email).To(gomega.Equal("customer@example.com"))
		})

		ginkgo.It("should not accept an access token as a refresh token", func() {
			// Given
			access, err := tokenGen.GenerateAccessToken("1", "customer@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			_, err = service.RefreshTokens(access)

			// Then
			gomega.Expect(err).To(gomega.Equal(ErrInvalidToken))
		})

		ginkgo.It("should return error for malformed token", func() {
			// When
			tokens, err := service.RefreshTokens("invalid.token.format")

			// Then
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(tokens.AccessToken).To(gomega.BeEmpty())
		})

		ginkgo.It("should return ErrTokenExpired for expired token", func() {
			// Given
			expiredTokenGen := NewJWTTokenGenerator(accessSecret, refreshSecret, -1*time.Hour, -1*time.Hour)
			expiredToken, err := expiredTokenGen.GenerateRefreshToken("1", "customer@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			_, err = service.RefreshTokens(expiredToken)

			// Then
			gomega.Expect(err).To(gomega.Equal(ErrTokenExpired))
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		ginkgo.It("should return error for empty token", func() {
			claims, err := service.ValidateAccessToken("")

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(claims).To(gomega.BeNil())
		})

		ginkgo.It("should reject tokens signed with another secret", func() {
			// Given
			other := NewJWTTokenGenerator("another-access-secret", refreshSecret, accessTTL, refreshTTL)
			token, err := other.GenerateAccessToken("1", "customer@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			claims, err := service.ValidateAccessToken(token)

			// Then
			gomega.Expect(err).To(gomega.Equal(ErrInvalidToken))
			gomega.Expect(claims).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("GetUserWithPermissions", func() {
		ginkgo.It("should return user with permissions", func() {
			user, err := service.GetUserWithPermissions(3)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(user.Email).To(gomega.Equal("reviewer@example.com"))
			gomega.Expect(user.CanVerifyPayments()).To(gomega.BeTrue())
		})

		ginkgo.It("should return error for unknown user", func() {
			user, err := service.GetUserWithPermissions(999)

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(user).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("HashPassword", func() {
		ginkgo.It("should produce a verifiable salted hash", func() {
			// When
			hash1, err1 := service.HashPassword("same_password")
			hash2, err2 := service.HashPassword("same_password")

			// Then
			gomega.Expect(err1).ToNot(gomega.HaveOccurred())
			gomega.Expect(err2).ToNot(gomega.HaveOccurred())
			gomega.Expect(hash1).ToNot(gomega.Equal(hash2))
			gomega.Expect(VerifyPassword(hash1, "same_password")).To(gomega.Succeed())
		})
	})
})

var _ = ginkgo.Describe("ABACPolicy", func() {
	var policy *ABACPolicy

	ginkgo.BeforeEach(func() {
		policy = NewABACPolicy(nil)
	})

	ginkgo.Context("when the caller owns the order", func() {
		ginkgo.It("should allow viewing and submitting", func() {
			// Given
			customer := &User{ID: 100, Permissions: []string{PermissionSubmitPayments}}

			// When & Then
			gomega.Expect(policy.CanViewOrder(customer, 100)).To(gomega.Succeed())
			gomega.Expect(policy.CanSubmitForOrder(customer, 100)).To(gomega.Succeed())
		})
	})

	ginkgo.Context("when the caller does not own the order", func() {
		ginkgo.It("should deny viewing and submitting", func() {
			// Given
			customer := &User{ID: 100, Permissions: []string{PermissionSubmitPayments}}

			// When
			viewErr := policy.CanViewOrder(customer, 200)
			submitErr := policy.CanSubmitForOrder(customer, 200)

			// Then
			gomega.Expect(errors.Is(viewErr, internal.ErrUnauthorizedAccess)).To(gomega.BeTrue())
			gomega.Expect(errors.Is(submitErr, internal.ErrUnauthorizedAccess)).To(gomega.BeTrue())
		})
	})

	ginkgo.Context("when the caller is a reviewer", func() {
		ginkgo.It("should allow viewing any order and verifying payments", func() {
			reviewer := &User{ID: 3, Permissions: []string{PermissionVerifyPayments}}

			gomega.Expect(policy.CanViewOrder(reviewer, 200)).To(gomega.Succeed())
			gomega.Expect(policy.CanVerifyPayment(reviewer)).To(gomega.Succeed())
			gomega.Expect(policy.CanSubmitForOrder(reviewer, 200)).ToNot(gomega.Succeed())
		})
	})

	ginkgo.Context("when the caller is an admin", func() {
		ginkgo.It("should allow every action", func() {
			admin := &User{ID: 2, Permissions: []string{PermissionAdmin}}

			gomega.Expect(policy.Allow(admin, 999, ActionView)).To(gomega.BeTrue())
			gomega.Expect(policy.Allow(admin, 999, ActionSubmit)).To(gomega.BeTrue())
			gomega.Expect(policy.Allow(admin, 999, ActionVerify)).To(gomega.BeTrue())
		})
	})

	ginkgo.It("should deny verification to customers", func() {
		customer := &User{ID: 100, Permissions: []string{PermissionSubmitPayments}}

		err := policy.CanVerifyPayment(customer)

		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(err.Error()).To(gomega.Equal("only admins can verify payments"))
	})

	ginkgo.It("should deny a nil caller", func() {
		gomega.Expect(policy.Allow(nil, 1, ActionView)).To(gomega.BeFalse())
	})
})

var _ = ginkgo.Describe("RefreshTokenDTO", func() {
	ginkgo.It("should require a refresh token", func() {
		err := RefreshTokenDTO{}.Validate()

		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(err.Error()).To(gomega.Equal("refresh_token is required"))
	})

	ginkgo.It("should accept a non-empty refresh token", func() {
		gomega.Expect(RefreshTokenDTO{RefreshToken: "valid.jwt.token"}.Validate()).To(gomega.Succeed())
	})
})
