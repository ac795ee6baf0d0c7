// Package server assembles the Echo HTTP server: datastore, auth,
// session manager, summary client, and the JSON API controller.
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/scribe-notes/scribe/internal/api"
	"github.com/scribe-notes/scribe/internal/conf"
	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/logging"
	"github.com/scribe-notes/scribe/internal/security"
	"github.com/scribe-notes/scribe/internal/session"
	"github.com/scribe-notes/scribe/internal/summary"
)

// Server encapsulates the Echo server and its wired components.
type Server struct {
	Echo     *echo.Echo
	DS       datastore.Interface
	Settings *conf.Settings
	Auth     *security.Service
	Sessions *session.Manager
	API      *api.Controller

	logger *slog.Logger
}

// New opens the datastore and wires the full HTTP stack.
func New(settings *conf.Settings) (*Server, error) {
	ds := datastore.New(settings)
	if ds == nil {
		return nil, fmt.Errorf("no database backend enabled, enable sqlite or mysql in the configuration")
	}
	if err := ds.Open(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := logging.ForService("server")

	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())

	auth := security.NewService(ds, &settings.Security)
	sessions := session.NewManager(ds, settings, logging.ForService("session"))
	authMiddleware := security.NewMiddleware(auth)

	controller, err := api.New(e, ds, settings, sessions, auth, log.Default(),
		api.WithAuthMiddleware(authMiddleware.Authenticate),
		api.WithSummarizer(summary.NewClient(&settings.Summary)),
	)
	if err != nil {
		closeErr := ds.Close()
		if closeErr != nil {
			logger.Error("failed to close database after init failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize API: %w", err)
	}

	return &Server{
		Echo:     e,
		DS:       ds,
		Settings: settings,
		Auth:     auth,
		Sessions: sessions,
		API:      controller,
		logger:   logger,
	}, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// listener fails or Shutdown closes it.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.Settings.WebServer.Host, s.Settings.WebServer.Port)
	s.logger.Info("starting HTTP server", "address", addr)

	err := s.Echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the listener gracefully and releases all resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	var firstErr error
	if err := s.Echo.Shutdown(ctx); err != nil {
		firstErr = err
	}

	s.API.Shutdown()

	if err := s.DS.Close(); err != nil {
		s.logger.Error("failed to close database", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
