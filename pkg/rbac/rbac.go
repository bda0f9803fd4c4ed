package rbac

import (
	"fmt"
	"strings"
)

// Role 用户角色，取值封闭
type Role string

// 角色常量
const (
	RoleAdmin       Role = "ADMIN"
	RoleSeairOrigin Role = "SEAIR_ORIGIN"
	RoleSeairUS     Role = "SEAIR_US"
	RoleVHC         Role = "VHC"
)

// Roles 列出全部合法角色
var Roles = []Role{RoleAdmin, RoleSeairOrigin, RoleSeairUS, RoleVHC}

// ParseRole 校验并规范化角色字符串
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", s)
}

// 权限常量
const (
	PermissionRegisterUser     = "user:register"
	PermissionCreateShipment   = "shipment:create"
	PermissionRecordMilestone  = "milestone:create"
	PermissionCreateInvoice    = "invoice:create"
	PermissionRaiseException   = "exception:create"
	PermissionResolveException = "exception:resolve"
	PermissionOperate          = "admin:operate" // outbox 重放、通知死信管理
)

// 角色权限映射，未列出的操作只需登录
var rolePermissions = map[Role][]string{
	RoleAdmin: {
		PermissionRegisterUser,
		PermissionCreateShipment,
		PermissionRecordMilestone,
		PermissionCreateInvoice,
		PermissionRaiseException,
		PermissionResolveException,
		PermissionOperate,
	},
	RoleSeairOrigin: {
		PermissionCreateShipment,
		PermissionRecordMilestone,
		PermissionRaiseException,
		PermissionResolveException,
	},
	RoleSeairUS: {
		PermissionRecordMilestone,
		PermissionCreateInvoice,
		PermissionRaiseException,
		PermissionResolveException,
	},
	RoleVHC: {},
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role Role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role Role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       Role
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "Unauthorized access"
}
