package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/errors"
	"github.com/scribe-notes/scribe/internal/security"
)

// credentialsRequest carries signup and login bodies.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public view of a user record.
type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func toUserResponse(u *datastore.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

// initAuthRoutes registers signup, login, logout, and session lookup.
func (c *Controller) initAuthRoutes() {
	g := c.Group.Group("/auth")
	g.POST("/signup", c.Signup)
	g.POST("/login", c.Login)
	g.POST("/logout", c.Logout)

	pg := c.protected().Group("/auth")
	pg.GET("/me", c.CurrentUser)
}

// Signup registers a new account and starts a session for it.
func (c *Controller) Signup(ctx echo.Context) error {
	var req credentialsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	user, err := c.Auth.Signup(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.HasCategory(err, errors.CategoryValidation):
			return c.HandleError(ctx, err, "Invalid email or password", http.StatusBadRequest)
		case errors.HasCategory(err, errors.CategoryConflict):
			return c.HandleError(ctx, err, "Account already exists", http.StatusConflict)
		case errors.HasCategory(err, errors.CategoryAuth):
			return c.HandleError(ctx, err, "Signup is disabled", http.StatusForbidden)
		default:
			return c.HandleError(ctx, err, "Failed to create account", http.StatusInternalServerError)
		}
	}

	if err := c.Auth.EstablishSession(ctx, user.ID); err != nil {
		return c.HandleError(ctx, err, "Failed to establish session", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, toUserResponse(&user))
}

// Login verifies credentials and starts a session.
func (c *Controller) Login(ctx echo.Context) error {
	var req credentialsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	user, err := c.Auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryAuth) {
			return c.HandleError(ctx, err, "Invalid email or password", http.StatusUnauthorized)
		}
		return c.HandleError(ctx, err, "Login failed", http.StatusInternalServerError)
	}

	if err := c.Auth.EstablishSession(ctx, user.ID); err != nil {
		return c.HandleError(ctx, err, "Failed to establish session", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, toUserResponse(&user))
}

// Logout clears the session cookie and drops the server-side session,
// stopping any capture still running.
func (c *Controller) Logout(ctx echo.Context) error {
	if userID := c.Auth.SessionUserID(ctx); userID != "" {
		c.Sessions.Drop(userID)
	}
	if err := c.Auth.ClearSession(ctx); err != nil {
		return c.HandleError(ctx, err, "Failed to clear session", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

// CurrentUser returns the authenticated user's record.
func (c *Controller) CurrentUser(ctx echo.Context) error {
	user, err := c.DS.GetUser(security.UserID(ctx))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "User not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to load user", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, toUserResponse(&user))
}
