package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "k"

func newUserService(t *testing.T) (*UserService, *memory.Store) {
	t.Helper()
	store := memory.New()
	cfg := &config.Config{
		SecretKey:     testSecret,
		SessionTTL:    time.Hour,
		ResetTokenTTL: 30 * time.Minute,
	}
	return NewUserService(store.Conn(), store, cfg, logging.Nop{}), store
}

func mustRegister(t *testing.T, s *UserService, name, role string) *models.User {
	t.Helper()
	u, err := s.Register(context.Background(), name, "pw-"+name, role)
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, " alice ", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, models.RoleEditor, u.Role)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "secret"))

	admin, err := s.Register(ctx, "root", "secret", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestRegister_Duplicate(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()

	first := mustRegister(t, s, "alice", "editor")

	_, err := s.Register(ctx, "alice", "other", "admin")
	require.ErrorIs(t, err, common.ErrorConflict)

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, first.ID, users[0].ID)
	assert.Equal(t, models.RoleEditor, users[0].Role)
}

func TestRegister_Validation(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()

	tests := []struct {
		name, user, pass, role string
	}{
		{"missing username", "", "pw", ""},
		{"missing password", "bob", "", ""},
		{"bad role", "bob", "pw", "owner"},
		{"long username", strings.Repeat("b", models.MaxUsernameLen+1), "pw", ""},
		{"long password", "bob", strings.Repeat("p", 100), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(ctx, tt.user, tt.pass, tt.role)
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
}

func TestLoginResolveLogout(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "alice", "")

	res, err := s.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	got, sess, err := s.ResolveSession(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, res.SessionID, sess.ID)

	require.NoError(t, s.Logout(ctx, sess.ID))
	_, _, err = s.ResolveSession(ctx, res.Token)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin_BadCredentials(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", "")

	_, err := s.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Login(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Login(ctx, "", "pw")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestLogin_PrunesExpiredSessions(t *testing.T) {
	s, store := newUserService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "alice", "")

	at := time.Now()
	store.Now = func() time.Time { return at }
	old, err := store.Sessions(nil).Create(ctx, u.ID, time.Minute)
	require.NoError(t, err)

	at = at.Add(time.Hour)
	_, err = s.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)

	_, err = store.Sessions(nil).Find(ctx, old.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestResolveSession_Rejects(t *testing.T) {
	s, store := newUserService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "alice", "")

	_, _, err := s.ResolveSession(ctx, "garbage")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	orphan, _ := auth.GenerateSessionToken("no-such-session", []byte(testSecret), time.Now().Add(time.Hour))
	_, _, err = s.ResolveSession(ctx, orphan)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	// Session row expired while the cookie is still valid.
	store.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	sess, _ := store.Sessions(nil).Create(ctx, u.ID, time.Hour)
	tok, _ := auth.GenerateSessionToken(sess.ID, []byte(testSecret), time.Now().Add(time.Hour))
	_, _, err = s.ResolveSession(ctx, tok)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = store.Sessions(nil).Find(ctx, sess.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateRole(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "bob", "")

	got, err := s.UpdateRole(ctx, u.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	_, err = s.UpdateRole(ctx, u.ID, "")
	assert.ErrorIs(t, err, common.ErrorValidation)
	_, err = s.UpdateRole(ctx, u.ID, "superuser")
	assert.ErrorIs(t, err, common.ErrorValidation)
	_, err = s.UpdateRole(ctx, 999, "editor")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()
	admin := mustRegister(t, s, "root", "admin")
	bob := mustRegister(t, s, "bob", "")

	err := s.Delete(ctx, admin.ID, admin.ID)
	require.ErrorIs(t, err, common.ErrorForbidden)

	require.NoError(t, s.Delete(ctx, admin.ID, bob.ID))
	assert.ErrorIs(t, s.Delete(ctx, admin.ID, bob.ID), common.ErrorNotFound)
}

func TestForgotAndResetPassword(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()
	mustRegister(t, s, "alice", "")

	login, err := s.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)

	token, err := s.ForgotPassword(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, s.ResetPassword(ctx, token, "new-pw"))

	_, err = s.Login(ctx, "alice", "pw-alice")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = s.Login(ctx, "alice", "new-pw")
	assert.NoError(t, err)

	_, _, err = s.ResolveSession(ctx, login.Token)
	assert.ErrorIs(t, err, common.ErrorUnauthorized, "old sessions end on reset")

	err = s.ResetPassword(ctx, token, "third-pw")
	assert.ErrorIs(t, err, common.ErrInvalidToken, "tokens are single use")
}

func TestForgotPassword_Errors(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()

	_, err := s.ForgotPassword(ctx, "")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.ForgotPassword(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestResetPassword_ExpiredTokenLeavesPassword(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "alice", "")

	expired, err := auth.IssueResetToken(u, []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	err = s.ResetPassword(ctx, expired, "new-pw")
	require.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = s.Login(ctx, "alice", "pw-alice")
	assert.NoError(t, err)
}

func TestResetPassword_Rejects(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()
	u := mustRegister(t, s, "alice", "")

	assert.ErrorIs(t, s.ResetPassword(ctx, "", "x"), common.ErrorValidation)
	assert.ErrorIs(t, s.ResetPassword(ctx, "not-a-token", "x"), common.ErrInvalidToken)

	forged, _ := auth.IssueResetToken(u, []byte("other-secret"), time.Hour)
	assert.ErrorIs(t, s.ResetPassword(ctx, forged, "x"), common.ErrInvalidToken)

	ghost, _ := auth.IssueResetToken(&models.User{ID: 999, PasswordHash: "h"}, []byte(testSecret), time.Hour)
	assert.ErrorIs(t, s.ResetPassword(ctx, ghost, "x"), common.ErrInvalidToken)

	wrongPurpose, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Purpose: "login",
	}).SignedString([]byte(testSecret))
	assert.ErrorIs(t, s.ResetPassword(ctx, wrongPurpose, "x"), common.ErrInvalidToken)
}
