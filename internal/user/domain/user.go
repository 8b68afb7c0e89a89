package domain

import (
	"strings"
	"time"
)

// Role is the user's role within the laundry service.
type Role string

const (
	RoleCustomer    Role = "customer"
	RoleWorker      Role = "worker"
	RoleDriver      Role = "driver"
	RoleOutletAdmin Role = "outlet_admin"
	RoleSuperAdmin  Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleWorker, RoleDriver, RoleOutletAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User is the core user entity. A nil PasswordHash means registration is incomplete,
// whatever EmailVerified says.
type User struct {
	ID            string
	Email         string
	PasswordHash  *string
	EmailVerified bool
	Name          string
	Phone         string
	Role          Role
	OutletID      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsComplete reports whether the user finished registration.
func (u *User) IsComplete() bool {
	return u.PasswordHash != nil
}

// Profile is the data submitted at registration completion.
type Profile struct {
	PasswordHash string
	Name         string
	Phone        string
}

// NormalizeEmail lowercases and trims an email address. Emails are stored normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
