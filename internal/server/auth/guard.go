package auth

import "github.com/dmitrijs2005/gophblog/internal/server/models"

type Gate int

const (
	// GateLoggedIn admits any authenticated user.
	GateLoggedIn Gate = iota
	GateAdmin
)

type Decision int

const (
	Allowed Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Authorize decides whether user (nil when anonymous) may pass gate.
func Authorize(user *models.User, gate Gate) Decision {
	if user == nil {
		return Unauthenticated
	}
	switch gate {
	case GateLoggedIn:
		if user.Role == models.RoleAdmin || user.Role == models.RoleEditor {
			return Allowed
		}
		return Forbidden
	case GateAdmin:
		if user.IsAdmin() {
			return Allowed
		}
		return Forbidden
	default:
		return Forbidden
	}
}
