// Package httpapi exposes the lists over a small read-mostly HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/runnerr0/listkeeper/internal/backend"
	"github.com/runnerr0/listkeeper/internal/logger"
	"github.com/runnerr0/listkeeper/internal/lookup"
	"github.com/runnerr0/listkeeper/internal/storage"
)

// SyncController is the part of the backend syncer the API drives.
type SyncController interface {
	Trigger() bool
	Status() backend.SyncStatus
}

// Deps are the collaborators shared by all handlers.
type Deps struct {
	Logger    logger.Logger
	Store     storage.Store
	Checker   *lookup.Checker
	Syncer    SyncController // nil disables POST /sync
	StartTime time.Time
	Version   string
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http   *http.Server
	logger logger.Logger
}

// NewRouter builds the chi router with middlewares and routes.
func NewRouter(d Deps, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	if d.Checker == nil {
		d.Checker = lookup.NewChecker(d.Store, nil, d.Logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(Log(d.Logger))

	r.Get("/healthz", Healthz(d))
	r.Get("/lists", Lists(d))
	r.Route("/lists/{name}", func(r chi.Router) {
		r.Get("/entries", Entries(d))
		r.Get("/match", Match(d))
	})
	r.Post("/sync", Sync(d))

	return r
}

// New builds the HTTP server listening on addr.
func New(addr string, requestTimeout time.Duration, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	s := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d, requestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return &Server{http: s, logger: d.Logger}
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}
