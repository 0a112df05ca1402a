// Package rest is the HTTP surface of the server: auth endpoints with a
// refresh cookie, the caller's tasks, and admin account management.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/auth"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// Pinger reports storage health. A nil Pinger is always healthy.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	CookieSecure bool
	RefreshTTL   time.Duration
}

type api struct {
	auth   *services.AuthService
	tasks  *services.TaskService
	admin  *services.AdminService
	codec  *auth.Codec
	health Pinger
	opts   Options
	log    logging.Logger
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(as *services.AuthService, ts *services.TaskService, ads *services.AdminService, codec *auth.Codec, health Pinger, opts Options, log logging.Logger) http.Handler {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = services.DefaultRefreshTokenTTL
	}
	a := &api{
		auth:   as,
		tasks:  ts,
		admin:  ads,
		codec:  codec,
		health: health,
		opts:   opts,
		log:    log.With("module", "http"),
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		a.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", a.healthz)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.register)
		r.Post("/login", a.login)
		r.Post("/refresh", a.refresh)
		r.Post("/logout", a.logout)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Get("/me", a.me)
			r.Post("/logout-all", a.logoutAll)
			r.Get("/sessions", a.sessions)
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(a.requireAuth)
		r.Get("/", a.listTasks)
		r.Post("/", a.createTask)
		r.Get("/{id}", a.getTask)
		r.Put("/{id}", a.updateTask)
		r.Patch("/{id}", a.updateTask)
		r.Delete("/{id}", a.deleteTask)
	})

	r.Route("/admin/users", func(r chi.Router) {
		r.Use(a.requireAuth, a.requireAdmin)
		r.Get("/", a.listUsers)
		r.Get("/{id}", a.getUser)
		r.Patch("/{id}", a.setUserStatus)
		r.Patch("/{id}/status", a.setUserStatus)
	})

	return r
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health.PingContext(r.Context()); err != nil {
			logging.FromContext(r.Context(), a.log).Warn(r.Context(), "storage ping failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Server runs an http.Server until its context is cancelled.
type Server struct {
	address string
	handler http.Handler
	logger  logging.Logger
}

func NewServer(address string, h http.Handler, l logging.Logger) *Server {
	return &Server{address: address, handler: h, logger: l.With("module", "http_server")}
}

// Run listens on the configured address and shuts down gracefully once ctx
// is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
