package user

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/user"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	IsActive     bool      `json:"is_active"`
	Permissions  []string  `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role collapses the permission set into the coarse role the storefront shows.
func (u *User) Role() string {
	for _, p := range u.Permissions {
		if p == "admin" {
			return "admin"
		}
	}
	return "customer"
}

var ErrNotFound = errors.New("user not found")

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		Permissions:  []string{},
	}
}

// ProfileResponse is the body of GET /users/me.
type ProfileResponse struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func ToProfileResponse(u *User) ProfileResponse {
	return ProfileResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		Role:        u.Role(),
		Permissions: u.Permissions,
	}
}
