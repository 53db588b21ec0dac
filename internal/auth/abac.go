package auth

import (
	"github.com/frahmantamala/upi-payments/internal"
)

type Action string

const (
	ActionView   Action = "view"
	ActionSubmit Action = "submit"
	ActionVerify Action = "verify"
)

// ABACPolicy decides access to a resource from the caller's attributes and the
// resource owner. Customers act on their own orders; staff with the matching
// permission act on anyone's.
type ABACPolicy struct {
	checker PermissionChecker
}

func NewABACPolicy(checker PermissionChecker) *ABACPolicy {
	if checker == nil {
		checker = NewPermissionChecker()
	}
	return &ABACPolicy{checker: checker}
}

func (p *ABACPolicy) Allow(u *User, resourceOwnerID int64, action Action) bool {
	if u == nil {
		return false
	}
	if p.checker.IsAdmin(u.Permissions) {
		return true
	}

	switch action {
	case ActionVerify:
		return p.checker.CanVerifyPayments(u.Permissions)
	case ActionView:
		if p.checker.CanViewAllPayments(u.Permissions) {
			return true
		}
	}

	return u.ID != 0 && u.ID == resourceOwnerID
}

// CanViewOrder checks whether the user can read payment state of an order owned by ownerID.
func (p *ABACPolicy) CanViewOrder(u *User, ownerID int64) error {
	if p.Allow(u, ownerID, ActionView) {
		return nil
	}
	return internal.ErrUnauthorizedAccess
}

// CanSubmitForOrder checks whether the user can upload a payment proof for the order.
func (p *ABACPolicy) CanSubmitForOrder(u *User, ownerID int64) error {
	if p.Allow(u, ownerID, ActionSubmit) {
		return nil
	}
	return internal.ErrUnauthorizedAccess
}

func (p *ABACPolicy) CanVerifyPayment(u *User) error {
	if p.Allow(u, 0, ActionVerify) {
		return nil
	}
	return internal.NewForbiddenError("only admins can verify payments", internal.ErrCodeUnauthorizedAccess)
}
