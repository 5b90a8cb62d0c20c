package auth

import (
	"testing"

	"github.com/dmitrijs2005/gophblog/internal/server/models"
)

func TestAuthorize(t *testing.T) {
	admin := &models.User{ID: 1, Role: models.RoleAdmin}
	editor := &models.User{ID: 2, Role: models.RoleEditor}
	odd := &models.User{ID: 3, Role: "guest"}

	tests := []struct {
		name string
		user *models.User
		gate Gate
		want Decision
	}{
		{"anonymous logged-in gate", nil, GateLoggedIn, Unauthenticated},
		{"anonymous admin gate", nil, GateAdmin, Unauthenticated},
		{"editor logged-in gate", editor, GateLoggedIn, Allowed},
		{"editor admin gate", editor, GateAdmin, Forbidden},
		{"admin logged-in gate", admin, GateLoggedIn, Allowed},
		{"admin admin gate", admin, GateAdmin, Allowed},
		{"unknown role", odd, GateLoggedIn, Forbidden},
		{"unknown gate", admin, Gate(99), Forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.user, tt.gate); got != tt.want {
				t.Fatalf("Authorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecision_String(t *testing.T) {
	if Forbidden.String() != "forbidden" || Decision(9).String() != "unknown" {
		t.Fatal("unexpected decision names")
	}
}
