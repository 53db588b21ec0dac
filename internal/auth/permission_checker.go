package auth

import "context"

type PermissionChecker interface {
	CanVerifyPayments(userPermissions []string) bool
	CanSubmitPayments(userPermissions []string) bool
	CanViewAllPayments(userPermissions []string) bool
	CanManageUPIConfig(userPermissions []string) bool
	HasAnyPermission(userPermissions []string, requiredPermissions []string) bool
	IsAdmin(userPermissions []string) bool
}

type DefaultPermissionChecker struct{}

func NewPermissionChecker() *DefaultPermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) HasPermission(ctx context.Context, userPermissions []string, permission string) (bool, error) {
	return c.HasAnyPermission(userPermissions, []string{permission, PermissionAdmin}), nil
}

func (c *DefaultPermissionChecker) CanVerifyPaymentsCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.CanVerifyPayments(userPermissions), nil
}

func (c *DefaultPermissionChecker) CanManageUPIConfigCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.CanManageUPIConfig(userPermissions), nil
}

func (c *DefaultPermissionChecker) IsAdminCtx(ctx context.Context, userPermissions []string) (bool, error) {
	return c.IsAdmin(userPermissions), nil
}

func (c *DefaultPermissionChecker) CanVerifyPayments(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermissionVerifyPayments, PermissionAdmin})
}

func (c *DefaultPermissionChecker) CanSubmitPayments(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermissionSubmitPayments, PermissionAdmin})
}

func (c *DefaultPermissionChecker) CanViewAllPayments(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermissionViewPayments, PermissionVerifyPayments, PermissionAdmin})
}

func (c *DefaultPermissionChecker) CanManageUPIConfig(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermissionManageUPIConfig, PermissionAdmin})
}

func (c *DefaultPermissionChecker) HasAnyPermission(userPermissions []string, requiredPermissions []string) bool {
	for _, userPerm := range userPermissions {
		for _, requiredPerm := range requiredPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

func (c *DefaultPermissionChecker) IsAdmin(userPermissions []string) bool {
	return c.HasAnyPermission(userPermissions, []string{PermissionAdmin})
}
