// Package rest exposes the blog over HTTP/JSON using a chi router.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/dmitrijs2005/gophblog/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

type PostService interface {
	List(ctx context.Context, params models.ListParams) (*models.PostPage, error)
	Get(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, post *models.Post, img *services.ImageUpload) (*models.Post, error)
	Update(ctx context.Context, id int64, patch models.PostPatch) (*models.Post, error)
	Delete(ctx context.Context, id int64) error
}

type UserService interface {
	Register(ctx context.Context, username, password, role string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	ResolveSession(ctx context.Context, token string) (*models.User, *models.Session, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id int64, role string) (*models.User, error)
	Delete(ctx context.Context, actorID, id int64) error
	ForgotPassword(ctx context.Context, username string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type HTTPServer struct {
	address      string
	posts        PostService
	users        UserService
	logger       logging.Logger
	corsOrigins  []string
	cookieSecure bool
}

func NewHTTPServer(cfg *config.Config, l logging.Logger, ps PostService, us UserService) *HTTPServer {
	return &HTTPServer{
		address:      cfg.HTTPAddr,
		posts:        ps,
		users:        us,
		logger:       l.With("module", "http_server"),
		corsOrigins:  cfg.CORSAllowedOrigins,
		cookieSecure: cfg.CookieSecure,
	}
}

// Router builds the full handler tree.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", s.index)

	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", s.listPosts)
		r.Get("/posts/{id}", s.getPost)
		r.With(s.require(auth.GateLoggedIn)).Post("/posts", s.createPost)
		r.With(s.require(auth.GateAdmin)).Put("/posts/{id}", s.updatePost)
		r.With(s.require(auth.GateAdmin)).Delete("/posts/{id}", s.deletePost)

		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.With(s.require(auth.GateLoggedIn)).Post("/logout", s.logout)
		r.With(s.require(auth.GateLoggedIn)).Get("/user", s.currentUser)

		r.Route("/users", func(r chi.Router) {
			r.Use(s.require(auth.GateAdmin))
			r.Get("/", s.listUsers)
			r.Put("/{id}", s.updateUser)
			r.Delete("/{id}", s.deleteUser)
		})

		r.Post("/forgot-password", s.forgotPassword)
		r.Post("/reset-password", s.resetPassword)
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to shutdownTimeout.
func (s *HTTPServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
		errCh <- srv.Serve(listen)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *HTTPServer) index(w http.ResponseWriter, r *http.Request) {
	respondMessage(w, http.StatusOK, "API do blog está no ar!")
}
