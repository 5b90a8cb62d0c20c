// Package server assembles the blog backend: storage, cache, image storage,
// services and the HTTP API. It owns their lifecycle from NewApp to Close.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/cache"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophblog/internal/server/rest"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/dmitrijs2005/gophblog/internal/server/storage"
)

// MemoryDSN selects the in-process store instead of PostgreSQL. Data is lost
// on exit.
const MemoryDSN = "memory://"

// openPostgres is a seam for tests.
var openPostgres = repomanager.OpenPostgres

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	cache  cache.Cache
	http   *rest.HTTPServer
}

// NewApp connects every backend described by c and builds the HTTP server.
// Optional integrations that fail to start are logged and left disabled.
func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(context.Background(), c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	if c.SecretKey == config.DefaultSecretKey {
		logger.Warn(ctx, "SECRET_KEY is not set, using the development key")
	}

	conn, manager, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	app.cache, err = cache.New(ctx, c.CacheURL, c.CacheTTL)
	if err != nil {
		logger.Warn(ctx, "cache disabled", "error", err)
		app.cache = cache.Nop{}
	}

	var images storage.ImageStore
	if c.StorageEnabled() {
		s3, err := storage.NewS3Store(ctx, c, logger)
		if err != nil {
			logger.Warn(ctx, "image storage disabled", "error", err)
		} else {
			images = s3
		}
	} else {
		logger.Info(ctx, "image storage not configured, uploads will be dropped")
	}

	ps := services.NewPostService(conn, manager, app.cache, images, c, logger)
	us := services.NewUserService(conn, manager, c, logger)
	app.http = rest.NewHTTPServer(c, logger, ps, us)

	return app, nil
}

func (app *App) openStore(ctx context.Context) (dbx.Conn, repomanager.RepositoryManager, error) {
	if strings.HasPrefix(app.config.DatabaseDSN, MemoryDSN) {
		app.logger.Warn(ctx, "using in-memory store, data will not survive a restart")
		store := memory.New()
		return store.Conn(), store, nil
	}

	db, err := openPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	app.db = db
	return dbx.NewDB(db), manager, nil
}

// Run serves HTTP until ctx is cancelled or the process receives
// SIGINT, SIGTERM or SIGQUIT.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")
	err := app.http.Run(ctx)
	app.logger.Info(ctx, "App stopped")
	return err
}

// Close releases the cache and the database pool.
func (app *App) Close() error {
	var errs []error
	if app.cache != nil {
		errs = append(errs, app.cache.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}
