// Package services contains server-side business logic. This file implements
// UserService: registration, cookie sessions, account administration and
// password reset.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
)

// LoginResult is what the transport needs to set the session cookie.
type LoginResult struct {
	User      *models.User
	Token     string
	SessionID string
	ExpiresAt time.Time
}

type UserService struct {
	db            dbx.Conn
	repomanager   repomanager.RepositoryManager
	secretKey     []byte
	sessionTTL    time.Duration
	resetTokenTTL time.Duration
	log           logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db dbx.Conn, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		secretKey:     []byte(cfg.SecretKey),
		sessionTTL:    cfg.SessionTTL,
		resetTokenTTL: cfg.ResetTokenTTL,
		log:           log.With("module", "users"),
	}
}

// Register creates an account. role may be empty for the default editor role.
func (s *UserService) Register(ctx context.Context, username, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, common.NewValidationError("Username and password are required")
	}
	if utf8.RuneCountInString(username) > models.MaxUsernameLen {
		return nil, common.NewValidationError("Username must be at most %d characters", models.MaxUsernameLen)
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		_, lookupErr := repo.GetByUsername(ctx, username)
		switch {
		case lookupErr == nil:
			return common.ErrorConflict
		case !errors.Is(lookupErr, common.ErrorNotFound):
			return lookupErr
		}
		var createErr error
		user, createErr = repo.Create(ctx, &models.User{Username: username, PasswordHash: hash, Role: r})
		return createErr
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.WithMessage(common.ErrorConflict, "Username already exists")
		}
		return nil, err
	}

	s.log.Info(ctx, "user registered", "id", user.ID, "role", user.Role)
	return user, nil
}

// Login checks credentials and opens a session. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, common.NewValidationError("Username and password are required")
	}

	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, badCredentials()
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, badCredentials()
	}

	sessions := s.repomanager.Sessions(s.db)
	if n, err := sessions.DeleteExpired(ctx); err != nil {
		s.log.Warn(ctx, "expired session cleanup failed", "error", err)
	} else if n > 0 {
		s.log.Debug(ctx, "expired sessions pruned", "count", n)
	}

	session, err := sessions.Create(ctx, user.ID, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	token, err := auth.GenerateSessionToken(session.ID, s.secretKey, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "id", user.ID)
	return &LoginResult{User: user, Token: token, SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

func badCredentials() error {
	return common.WithMessage(common.ErrorUnauthorized, "Invalid username or password")
}

// Logout ends the session. Ending an already gone session is not an error.
func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	return s.repomanager.Sessions(s.db).Delete(ctx, sessionID)
}

// ResolveSession maps a session cookie value to its live session and user.
// Any failure yields common.ErrorUnauthorized; the cause is only logged.
func (s *UserService) ResolveSession(ctx context.Context, token string) (*models.User, *models.Session, error) {
	sid, err := auth.GetSessionIDFromToken(token, s.secretKey)
	if err != nil {
		s.log.Debug(ctx, "session cookie rejected", "reason", err)
		return nil, nil, common.ErrorUnauthorized
	}

	sessions := s.repomanager.Sessions(s.db)
	session, err := sessions.Find(ctx, sid)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, err
	}
	if session.Expired(time.Now()) {
		if err := sessions.Delete(ctx, sid); err != nil {
			s.log.Warn(ctx, "failed to drop expired session", "error", err)
		}
		return nil, nil, common.ErrorUnauthorized
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, err
	}
	return user, session, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// UpdateRole sets a user's role; role must be "admin" or "editor".
func (s *UserService) UpdateRole(ctx context.Context, id int64, role string) (*models.User, error) {
	if strings.TrimSpace(role) == "" {
		return nil, common.NewValidationError("Invalid role. Must be 'admin' or 'editor'")
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if err := repo.UpdateRole(ctx, id, r); err != nil {
			return err
		}
		var err error
		user, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, userErr(err)
	}

	s.log.Info(ctx, "user role changed", "id", id, "role", r)
	return user, nil
}

// Delete removes the account id on behalf of actorID. Admins cannot delete
// themselves.
func (s *UserService) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return common.WithMessage(common.ErrorForbidden, "Cannot delete your own account")
	}
	if err := s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).Delete(ctx, id)
	}); err != nil {
		return userErr(err)
	}

	s.log.Info(ctx, "user deleted", "id", id, "by", actorID)
	return nil
}

// ForgotPassword issues a reset token for username.
func (s *UserService) ForgotPassword(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", common.NewValidationError("Username is required")
	}

	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		return "", userErr(err)
	}

	token, err := auth.IssueResetToken(user, s.secretKey, s.resetTokenTTL)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "password reset token issued", "id", user.ID)
	return token, nil
}

// ResetPassword redeems token and sets newPassword. All open sessions of
// the user are closed. Every token problem surfaces as
// common.ErrInvalidToken; whether it was expired is only logged.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return common.NewValidationError("Token and new password are required")
	}

	userID, claims, err := auth.ParseResetToken(token, s.secretKey)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			s.log.Info(ctx, "reset token expired")
		} else {
			s.log.Warn(ctx, "reset token rejected", "reason", err)
		}
		return common.ErrInvalidToken
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		user, err := users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		if !claims.FingerprintMatches(user, s.secretKey) {
			s.log.Warn(ctx, "reset token already used", "id", userID)
			return common.ErrInvalidToken
		}
		if err := users.UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}
		return s.repomanager.Sessions(tx).DeleteByUser(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "password reset", "id", userID)
	return nil
}

func userErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.WithMessage(common.ErrorNotFound, "User not found")
	}
	return err
}
