// Package api implements the versioned JSON API serving the Scribe web
// client: authentication, notebook management, capture ingest, sharing,
// and summarization.
package api

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/scribe-notes/scribe/internal/conf"
	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/errors"
	"github.com/scribe-notes/scribe/internal/logging"
	"github.com/scribe-notes/scribe/internal/security"
	"github.com/scribe-notes/scribe/internal/session"
)

// Summarizer generates a summary for captured speech text.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Sessions *session.Manager
	Auth     *security.Service

	summarizer     Summarizer
	authMiddleware echo.MiddlewareFunc
	logger         *log.Logger

	// cached notebook listings, invalidated on any notebook mutation
	notebookCache *cache.Cache

	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error

	startTime time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithAuthMiddleware sets the middleware guarding the protected routes.
func WithAuthMiddleware(mw echo.MiddlewareFunc) Option {
	return func(c *Controller) {
		c.authMiddleware = mw
	}
}

// WithSummarizer sets the summary backend.
func WithSummarizer(s Summarizer) Option {
	return func(c *Controller) {
		c.summarizer = s
	}
}

// New creates the API controller and registers all routes under /api/v1.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	sessions *session.Manager, auth *security.Service,
	logger *log.Logger, opts ...Option) (*Controller, error) {

	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:          e,
		DS:            ds,
		Settings:      settings,
		Sessions:      sessions,
		Auth:          auth,
		logger:        logger,
		notebookCache: cache.New(5*time.Minute, 10*time.Minute),
		startTime:     time.Now(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)
	if settings.WebServer.Debug {
		c.apiLevelVar.Set(slog.LevelDebug)
	}

	apiLogger, closeFunc, err := logging.NewFileLogger("logs/web.log", "api", c.apiLevelVar)
	if err != nil {
		logger.Printf("Warning: failed to initialize API structured logger: %v", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit(requestBodyLimit(settings)))
	c.Group.Use(c.LoggingMiddleware())
	c.initRoutes()

	return c, nil
}

// requestBodyLimit sizes the body limit from the transcript bound plus
// headroom for the JSON envelope, so capture ingest payloads fit but
// nothing larger is buffered.
func requestBodyLimit(settings *conf.Settings) string {
	limit := settings.Capture.MaxTranscriptBytes + 16*1024
	return strconv.Itoa(limit) + "B"
}

// LoggingMiddleware logs every API request with structured fields.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	// publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"auth routes", c.initAuthRoutes},
		{"notebook routes", c.initNotebookRoutes},
		{"capture routes", c.initCaptureRoutes},
		{"share routes", c.initShareRoutes},
		{"summary routes", c.initSummaryRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s...", initializer.name)
		initializer.fn()
	}
}

// HealthCheck reports service and database status.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":     "healthy",
		"version":    c.Settings.Version,
		"build_date": c.Settings.BuildDate,
		"timestamp":  time.Now().Format(time.RFC3339),
	}

	dbStatus := "connected"
	if _, err := c.DS.GetUserByEmail("health-probe@invalid"); err != nil {
		// a not-found result still proves the database answers
		if !errors.IsNotFound(err) {
			dbStatus = "disconnected"
			response["database_error"] = err.Error()
			response["status"] = "degraded"
		}
	}
	response["database_status"] = dbStatus

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.String()
	response["uptime_seconds"] = uptime.Seconds()

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}
	if c.notebookCache != nil {
		c.notebookCache.Flush()
	}
	c.Debug("API Controller shutting down")
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an API error response with a fresh correlation
// ID for log lookup.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	correlationID := generateCorrelationID()

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs the failure with its correlation ID and writes the
// error envelope.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.logger.Printf("API Error [%s] from %s: %s: %v",
		errorResp.CorrelationID, ctx.RealIP(), message, err)

	if c.apiLogger != nil {
		errorStr := message
		if err != nil {
			errorStr = err.Error()
		}
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// Debug logs debug messages when debug mode is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)
		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}

// protected wraps a route group with the auth middleware when one is
// configured.
func (c *Controller) protected() *echo.Group {
	g := c.Group.Group("")
	if c.authMiddleware != nil {
		g.Use(c.authMiddleware)
	}
	return g
}
