package security

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys for authentication values stored in echo.Context. Prefixed
// to avoid collisions with other packages.
const (
	// CtxKeyUserID holds the authenticated user's ID.
	CtxKeyUserID = "auth:userID"
)

// Middleware guards route groups behind a valid session.
type Middleware struct {
	service *Service
}

// NewMiddleware creates auth middleware backed by the service.
func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// Authenticate resolves the session cookie and stores the user ID in the
// request context. Unauthenticated API calls get 401 JSON; browser
// navigation is redirected to the login page.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := m.service.SessionUserID(c)
		if userID != "" {
			c.Set(CtxKeyUserID, userID)
			return next(c)
		}
		return m.handleUnauthenticated(c)
	}
}

func (m *Middleware) handleUnauthenticated(c echo.Context) error {
	if isBrowserNavigation(c) {
		return c.Redirect(http.StatusFound, "/login")
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": "authentication required",
	})
}

// isBrowserNavigation distinguishes page loads from API calls so each
// gets the right unauthenticated response. Fetch/XHR clients send JSON
// Accept headers, so only address-bar GETs match.
func isBrowserNavigation(c echo.Context) bool {
	if c.Request().Method != http.MethodGet {
		return false
	}
	accept := c.Request().Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

// UserID returns the authenticated user's ID from the request context, or
// "" when the request did not pass through Authenticate.
func UserID(c echo.Context) string {
	userID, _ := c.Get(CtxKeyUserID).(string)
	return userID
}
