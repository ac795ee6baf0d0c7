// Package security implements email/password authentication and the
// cookie-backed session layer guarding the application.
package security

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/scribe-notes/scribe/internal/conf"
	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/errors"
	"github.com/scribe-notes/scribe/internal/logging"
)

const (
	// SessionName is the cookie carrying the signed session.
	SessionName = "scribe-session"

	sessionKeyUserID = "user_id"
)

// Service performs signup, login, and logout against the user store and
// manages the session cookie.
type Service struct {
	ds       datastore.Interface
	settings *conf.SecuritySettings
	store    *sessions.CookieStore
	logger   *slog.Logger
}

// NewService creates the auth service with a cookie store signed by the
// configured session secret.
func NewService(ds datastore.Interface, settings *conf.SecuritySettings) *Service {
	store := sessions.NewCookieStore([]byte(settings.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   settings.SessionMaxAge,
		Secure:   settings.RedirectToHTTPS,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Service{
		ds:       ds,
		settings: settings,
		store:    store,
		logger:   logging.ForService("security"),
	}
}

// Signup registers a new user. The display name is derived from the email
// local part; a welcome notebook is created so the first session is not
// empty.
func (s *Service) Signup(email, password string) (datastore.User, error) {
	if !s.settings.AllowSignup {
		return datastore.User{}, errors.Newf("signup is disabled").
			Component("security").
			Category(errors.CategoryAuth).
			Build()
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateCredentials(email, password); err != nil {
		return datastore.User{}, err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return datastore.User{}, err
	}

	user := datastore.User{
		Email:        email,
		FullName:     fullNameFromEmail(email),
		PasswordHash: hash,
	}
	if err := s.ds.CreateUser(&user); err != nil {
		if errors.HasCategory(err, errors.CategoryConflict) {
			return datastore.User{}, errors.Newf("an account with this email already exists").
				Component("security").
				Category(errors.CategoryConflict).
				Build()
		}
		return datastore.User{}, err
	}

	if _, err := s.ds.CreateNotebook(user.ID, ""); err != nil {
		s.logger.Warn("failed to create welcome notebook", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies the credentials and returns the user on success. The
// same error comes back for an unknown email and a wrong password.
func (s *Service) Login(email, password string) (datastore.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.ds.GetUserByEmail(email)
	if err != nil {
		if errors.IsNotFound(err) {
			return datastore.User{}, invalidCredentials()
		}
		return datastore.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return datastore.User{}, invalidCredentials()
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, nil
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *Service) HashPassword(password string) (string, error) {
	cost := s.settings.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", errors.New(err).
			Component("security").
			Category(errors.CategoryAuth).
			Build()
	}
	return string(hash), nil
}

// EstablishSession writes the user ID into the session cookie.
func (s *Service) EstablishSession(c echo.Context, userID string) error {
	sess, err := s.store.Get(c.Request(), SessionName)
	if err != nil {
		// a tampered or stale cookie decodes to a fresh session
		s.logger.Debug("replacing undecodable session cookie", "error", err)
	}
	sess.Values[sessionKeyUserID] = userID
	return sess.Save(c.Request(), c.Response())
}

// ClearSession expires the session cookie.
func (s *Service) ClearSession(c echo.Context) error {
	sess, _ := s.store.Get(c.Request(), SessionName)
	delete(sess.Values, sessionKeyUserID)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// SessionUserID extracts the authenticated user ID from the request, or
// "" when the request carries no valid session.
func (s *Service) SessionUserID(c echo.Context) string {
	sess, err := s.store.Get(c.Request(), SessionName)
	if err != nil {
		return ""
	}
	userID, ok := sess.Values[sessionKeyUserID].(string)
	if !ok {
		return ""
	}
	return userID
}

// CurrentUser resolves the session to a full user record.
func (s *Service) CurrentUser(c echo.Context) (datastore.User, error) {
	userID := s.SessionUserID(c)
	if userID == "" {
		return datastore.User{}, invalidCredentials()
	}
	return s.ds.GetUser(userID)
}

// fullNameFromEmail derives a display name from the part before the @.
func fullNameFromEmail(email string) string {
	localPart, _, found := strings.Cut(email, "@")
	if !found || localPart == "" {
		return email
	}
	return localPart
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return errors.Newf("a valid email address is required").
			Component("security").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(password) < 8 {
		return errors.Newf("password must be at least 8 characters").
			Component("security").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func invalidCredentials() error {
	return errors.Newf("invalid email or password").
		Component("security").
		Category(errors.CategoryAuth).
		Build()
}
