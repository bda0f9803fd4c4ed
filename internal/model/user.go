package model

import (
	"strings"
	"time"

	"shipmentportal/pkg/rbac"
)

type User struct {
	ID           int64      `json:"user_id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         rbac.Role  `json:"role"`
	Team         *string    `json:"team"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// UsernameFromEmail derives the login handle from the mailbox part of the address.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
