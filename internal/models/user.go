package models

import "time"

type UserRole string

const (
	UserRoleAdmin   UserRole = "Admin"
	UserRoleManager UserRole = "Manager"
	UserRoleUser    UserRole = "User"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleManager, UserRoleUser:
		return true
	}
	return false
}

type User struct {
	ID           string
	Username     string
	Email        string
	Phone        *string
	PasswordHash []byte
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
