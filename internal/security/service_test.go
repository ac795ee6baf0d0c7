package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scribe-notes/scribe/internal/conf"
	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/errors"
)

type testStore struct {
	*datastore.DataStore
}

func (testStore) Open() error { return nil }

func newTestService(t *testing.T) (*Service, testStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&datastore.User{},
		&datastore.Notebook{},
		&datastore.NotebookDetail{},
		&datastore.NotebookShare{},
	))
	ds := testStore{&datastore.DataStore{DB: db}}

	svc := NewService(ds, &conf.SecuritySettings{
		SessionSecret: "test-secret",
		SessionMaxAge: 3600,
		BcryptCost:    bcrypt.MinCost,
		AllowSignup:   true,
	})
	return svc, ds
}

func TestSignupDerivesFullNameFromEmail(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	user, err := svc.Signup("Jamie.Doe@Example.com", "correct horse battery")
	require.NoError(t, err)

	assert.Equal(t, "jamie.doe@example.com", user.Email)
	assert.Equal(t, "jamie.doe", user.FullName)
	assert.NotEmpty(t, user.ID)
}

func TestSignupCreatesWelcomeNotebook(t *testing.T) {
	t.Parallel()
	svc, ds := newTestService(t)

	user, err := svc.Signup("new@example.com", "long enough pass")
	require.NoError(t, err)

	notebooks, err := ds.ListNotebooks(user.ID)
	require.NoError(t, err)
	require.Len(t, notebooks, 1)
	assert.Equal(t, datastore.DefaultNotebookTitle, notebooks[0].Title)
}

func TestSignupRejectsBadInput(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "long enough pass"},
		{"email without at sign", "not-an-email", "long enough pass"},
		{"short password", "a@example.com", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(tc.email, tc.password)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Signup("dupe@example.com", "long enough pass")
	require.NoError(t, err)

	_, err = svc.Signup("dupe@example.com", "another password")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConflict))
}

func TestSignupDisabled(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	svc.settings.AllowSignup = false

	_, err := svc.Signup("someone@example.com", "long enough pass")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryAuth))
}

func TestLogin(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	created, err := svc.Signup("login@example.com", "long enough pass")
	require.NoError(t, err)

	user, err := svc.Login("login@example.com", "long enough pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	// unknown email and wrong password fail identically
	_, badEmail := svc.Login("nobody@example.com", "long enough pass")
	_, badPass := svc.Login("login@example.com", "wrong password!")
	require.Error(t, badEmail)
	require.Error(t, badPass)
	assert.Equal(t, badEmail.Error(), badPass.Error())
	assert.True(t, errors.HasCategory(badPass, errors.CategoryAuth))
}

func newEchoContext(t *testing.T, target string, header http.Header) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	user, err := svc.Signup("session@example.com", "long enough pass")
	require.NoError(t, err)

	c, rec := newEchoContext(t, "/api/v1/auth/login", nil)
	require.NoError(t, svc.EstablishSession(c, user.ID))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// replay the cookie on a fresh request
	header := http.Header{}
	for _, ck := range cookies {
		header.Add("Cookie", ck.String())
	}
	c2, _ := newEchoContext(t, "/api/v1/auth/me", header)
	assert.Equal(t, user.ID, svc.SessionUserID(c2))

	// clearing the session invalidates it
	rec3 := httptest.NewRecorder()
	c3 := echo.New().NewContext(c2.Request(), rec3)
	require.NoError(t, svc.ClearSession(c3))
}

func TestMiddlewareUnauthenticated(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	mw := NewMiddleware(svc)
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	// API request gets 401 JSON
	c, rec := newEchoContext(t, "/api/v1/notebooks", nil)
	require.NoError(t, mw.Authenticate(next)(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/json")

	// browser navigation is redirected to the login page, guarded API
	// paths included
	header := http.Header{"Accept": []string{"text/html,application/xhtml+xml"}}
	for _, target := range []string{"/dashboard", "/api/v1/notebooks"} {
		c2, rec2 := newEchoContext(t, target, header)
		require.NoError(t, mw.Authenticate(next)(c2))
		assert.Equal(t, http.StatusFound, rec2.Code)
		assert.Equal(t, "/login", rec2.Header().Get("Location"))
	}

	// non-GET requests never redirect even when the client accepts HTML
	req := httptest.NewRequest(http.MethodPost, "/api/v1/share", http.NoBody)
	req.Header.Set("Accept", "text/html")
	rec3 := httptest.NewRecorder()
	c3 := echo.New().NewContext(req, rec3)
	require.NoError(t, mw.Authenticate(next)(c3))
	assert.Equal(t, http.StatusUnauthorized, rec3.Code)
}

func TestMiddlewareAuthenticated(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	user, err := svc.Signup("mw@example.com", "long enough pass")
	require.NoError(t, err)

	c, rec := newEchoContext(t, "/api/v1/auth/login", nil)
	require.NoError(t, svc.EstablishSession(c, user.ID))

	header := http.Header{}
	for _, ck := range rec.Result().Cookies() {
		header.Add("Cookie", ck.String())
	}

	mw := NewMiddleware(svc)
	var seenUserID string
	next := func(c echo.Context) error {
		seenUserID = UserID(c)
		return c.NoContent(http.StatusOK)
	}

	c2, rec2 := newEchoContext(t, "/api/v1/notebooks", header)
	require.NoError(t, mw.Authenticate(next)(c2))
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, user.ID, seenUserID)
}
