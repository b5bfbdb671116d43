package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the access level of an account
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
)

// ParseRole normalises a role name. "container" is the legacy name for drivers.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "dispatcher":
		return RoleDispatcher, nil
	case "driver", "container":
		return RoleDriver, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User is an admin, dispatcher or driver account
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	UserMainID   string     `json:"userMainId,omitempty"` // external driver code
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
