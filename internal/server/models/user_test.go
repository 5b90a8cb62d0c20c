package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"", RoleEditor, false},
		{"editor", RoleEditor, false},
		{" Admin ", RoleAdmin, false},
		{"root", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, common.ErrorValidation, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestUser_JSONHidesHash(t *testing.T) {
	b, err := json.Marshal(User{ID: 1, Username: "ann", PasswordHash: "$2a$secret", Role: RoleAdmin})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"username":"ann","role":"admin"}`, string(b))
}

func TestUser_IsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&User{Role: RoleEditor}).IsAdmin())
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now}
	assert.True(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(-time.Second)))
}

func TestListParams(t *testing.T) {
	p := ListParams{Page: 3, PerPage: 10, Search: "Go", Paged: true}
	assert.Equal(t, 20, p.Offset())
	assert.True(t, p.InRange())
	assert.Equal(t, "posts:list:page=3:per_page=10:search=go", p.CacheKey("posts:list:"))

	assert.False(t, ListParams{Page: 0, PerPage: 10}.InRange())
	assert.Equal(t, "posts:list:all", ListParams{}.CacheKey("posts:list:"))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 3, TotalPages(25, 10))
	assert.Equal(t, 0, TotalPages(5, 0))
}
