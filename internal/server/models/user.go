package models

import (
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

const MaxUsernameLen = 80

// ParseRole accepts "admin" or "editor" (case-insensitive). An empty string
// yields the default editor role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return RoleEditor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleEditor:
		return RoleEditor, nil
	default:
		return "", common.NewValidationError("Invalid role. Must be 'admin' or 'editor'")
	}
}

// User is an account. PasswordHash is a bcrypt hash and is never serialized.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
