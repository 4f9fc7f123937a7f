package models

import (
	"time"
)

// DefaultRoleID is assigned to every self-registered user.
const DefaultRoleID = 1

// DefaultRoleName is used when a user's role row cannot be joined.
const DefaultRoleName = "user"

type User struct {
	ID                  int64
	Username            string
	Email               string
	PasswordHash        string // never exposed in responses or logs
	FullName            *string
	PhoneNumber         *string
	IsActive            bool
	RoleID              int
	RoleName            string // joined from roles, DefaultRoleName when absent
	FailedLoginAttempts int
	LastLogin           *time.Time
	CreatedAt           time.Time
}

// Role is read-only reference data consumed when building auth responses.
type Role struct {
	ID   int
	Name string
}
