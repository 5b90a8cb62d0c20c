// Package memory is an in-process RepositoryManager over plain maps. It backs
// service and HTTP tests and local runs without PostgreSQL.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/users"
)

var errNoSQL = errors.New("memory store does not execute SQL")

// Store holds all tables. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex
	// txMu serializes transactions across every Conn of the store.
	txMu sync.Mutex

	posts    map[int64]models.Post
	users    map[int64]models.User
	sessions map[string]models.Session
	nextPost int64
	nextUser int64

	// Now is the clock used for session expiry.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		posts:    map[int64]models.Post{},
		users:    map[int64]models.User{},
		sessions: map[string]models.Session{},
		Now:      time.Now,
	}
}

func (s *Store) RunMigrations(context.Context, *sql.DB) error { return nil }

func (s *Store) Users(dbx.DBTX) users.Repository       { return &userRepo{s: s} }
func (s *Store) Sessions(dbx.DBTX) sessions.Repository { return &sessionRepo{s: s} }
func (s *Store) Posts(dbx.DBTX) posts.Repository       { return &postRepo{s: s} }

// Conn returns a dbx.Conn whose transactions snapshot the store and restore
// it when fn fails.
func (s *Store) Conn() dbx.Conn {
	return &conn{s: s}
}

type conn struct {
	s *Store
}

func (c *conn) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (c *conn) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

// QueryRowContext cannot build a *sql.Row outside database/sql; repositories
// from this package never call it.
func (c *conn) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic(errNoSQL)
}

func (c *conn) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	c.s.txMu.Lock()
	defer c.s.txMu.Unlock()

	snap := c.s.snapshot()
	if err := fn(ctx, c); err != nil {
		c.s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	posts    map[int64]models.Post
	users    map[int64]models.User
	sessions map[string]models.Session
	nextPost int64
	nextUser int64
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		posts:    maps.Clone(s.posts),
		users:    maps.Clone(s.users),
		sessions: maps.Clone(s.sessions),
		nextPost: s.nextPost,
		nextUser: s.nextUser,
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = snap.posts
	s.users = snap.users
	s.sessions = snap.sessions
	s.nextPost = snap.nextPost
	s.nextUser = snap.nextUser
}
