package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/errors"
	"github.com/scribe-notes/scribe/internal/security"
	"github.com/scribe-notes/scribe/internal/session"
)

type createNotebookRequest struct {
	Title string `json:"title"`
}

type renameNotebookRequest struct {
	Title string `json:"title"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// detailResponse carries the working fields of a notebook. Both fields
// are empty strings when no detail row exists yet.
type detailResponse struct {
	NotebookID string `json:"notebook_id"`
	SpeechText string `json:"speech_text"`
	Notes      string `json:"notes"`
}

// initNotebookRoutes registers notebook CRUD and session routes.
func (c *Controller) initNotebookRoutes() {
	g := c.protected().Group("/notebooks")

	g.GET("", c.ListNotebooks)
	g.POST("", c.CreateNotebook)
	g.PATCH("/:id", c.RenameNotebook)
	g.DELETE("/:id", c.DeleteNotebook)

	g.GET("/:id/detail", c.GetNotebookDetail)
	g.POST("/:id/select", c.SelectNotebook)
	g.PUT("/:id/notes", c.UpdateNotes)
}

func notebookCacheKey(userID string) string {
	return "notebooks:" + userID
}

// reconciler returns the caller's session reconciler.
func (c *Controller) reconciler(ctx echo.Context) *session.Reconciler {
	return c.Sessions.Get(security.UserID(ctx))
}

// ListNotebooks returns the caller's notebooks, owned and shared, newest
// first. Listings are cached per user until a mutation invalidates them.
func (c *Controller) ListNotebooks(ctx echo.Context) error {
	userID := security.UserID(ctx)

	if cached, found := c.notebookCache.Get(notebookCacheKey(userID)); found {
		if notebooks, ok := cached.([]datastore.Notebook); ok {
			return ctx.JSON(http.StatusOK, notebooks)
		}
	}

	r := c.Sessions.Get(userID)
	if err := r.RefreshNotebooks(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "Failed to list notebooks", http.StatusInternalServerError)
	}

	notebooks := r.Notebooks()
	c.notebookCache.Set(notebookCacheKey(userID), notebooks, cache.DefaultExpiration)
	return ctx.JSON(http.StatusOK, notebooks)
}

// CreateNotebook creates a notebook. An empty title gets the default.
func (c *Controller) CreateNotebook(ctx echo.Context) error {
	userID := security.UserID(ctx)

	var req createNotebookRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	notebook, err := c.DS.CreateNotebook(userID, req.Title)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create notebook", http.StatusInternalServerError)
	}

	c.invalidateNotebooks(userID)
	if err := c.reconciler(ctx).RefreshNotebooks(ctx.Request().Context()); err != nil {
		c.Debug("list refresh after create failed: %v", err)
	}

	return ctx.JSON(http.StatusCreated, notebook)
}

// RenameNotebook updates a notebook title through the reconciler's
// optimistic path.
func (c *Controller) RenameNotebook(ctx echo.Context) error {
	userID := security.UserID(ctx)
	notebookID := ctx.Param("id")

	var req renameNotebookRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	if ok, err := c.requireAccess(ctx, userID, notebookID); !ok {
		return err
	}

	if err := c.reconciler(ctx).RenameNotebook(ctx.Request().Context(), notebookID, req.Title); err != nil {
		switch {
		case errors.HasCategory(err, errors.CategoryValidation):
			return c.HandleError(ctx, err, "Notebook title must not be empty", http.StatusBadRequest)
		case errors.IsNotFound(err):
			return c.HandleError(ctx, err, "Notebook not found", http.StatusNotFound)
		default:
			return c.HandleError(ctx, err, "Failed to rename notebook", http.StatusInternalServerError)
		}
	}

	c.invalidateNotebooks(userID)
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Notebook renamed"})
}

// DeleteNotebook removes a notebook through the reconciler's optimistic
// path; on store failure the visible list is restored from the store.
func (c *Controller) DeleteNotebook(ctx echo.Context) error {
	userID := security.UserID(ctx)
	notebookID := ctx.Param("id")

	if ok, err := c.requireAccess(ctx, userID, notebookID); !ok {
		return err
	}

	if err := c.reconciler(ctx).DeleteNotebook(ctx.Request().Context(), notebookID); err != nil {
		c.invalidateNotebooks(userID)
		return c.HandleError(ctx, err, "Failed to delete notebook", http.StatusInternalServerError)
	}

	c.invalidateNotebooks(userID)
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Notebook deleted"})
}

// GetNotebookDetail returns the notebook's transcript and notes. A
// notebook without a detail row yields empty strings, not an error.
func (c *Controller) GetNotebookDetail(ctx echo.Context) error {
	userID := security.UserID(ctx)
	notebookID := ctx.Param("id")

	if ok, err := c.requireAccess(ctx, userID, notebookID); !ok {
		return err
	}

	resp := detailResponse{NotebookID: notebookID}
	detail, err := c.DS.GetNotebookDetail(notebookID)
	switch {
	case err == nil:
		resp.SpeechText = detail.SpeechText
		resp.Notes = detail.Notes
	case errors.IsNotFound(err):
		// fresh notebook, empty working fields
	default:
		return c.HandleError(ctx, err, "Failed to load notebook detail", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, resp)
}

// SelectNotebook makes the notebook the active one for the caller's
// session and returns its working fields.
func (c *Controller) SelectNotebook(ctx echo.Context) error {
	notebookID := ctx.Param("id")

	if err := c.reconciler(ctx).SelectNotebook(ctx.Request().Context(), notebookID); err != nil {
		switch {
		case errors.HasCategory(err, errors.CategoryAuth):
			return c.HandleError(ctx, err, "Notebook not found", http.StatusNotFound)
		default:
			return c.HandleError(ctx, err, "Failed to select notebook", http.StatusInternalServerError)
		}
	}

	state := c.reconciler(ctx).State()
	return ctx.JSON(http.StatusOK, detailResponse{
		NotebookID: state.SelectedNotebookID,
		SpeechText: state.Transcript,
		Notes:      state.Notes,
	})
}

// UpdateNotes replaces the notes of the notebook, selecting it first when
// it is not the active one.
func (c *Controller) UpdateNotes(ctx echo.Context) error {
	notebookID := ctx.Param("id")

	var req notesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	r := c.reconciler(ctx)
	if r.State().SelectedNotebookID != notebookID {
		if err := r.SelectNotebook(ctx.Request().Context(), notebookID); err != nil {
			if errors.HasCategory(err, errors.CategoryAuth) {
				return c.HandleError(ctx, err, "Notebook not found", http.StatusNotFound)
			}
			return c.HandleError(ctx, err, "Failed to select notebook", http.StatusInternalServerError)
		}
	}

	if err := r.EditNotes(ctx.Request().Context(), req.Notes); err != nil {
		return c.HandleError(ctx, err, "Failed to save notes", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"message": "Notes saved"})
}

// requireAccess writes the error response for callers who may not view
// the notebook and reports whether the handler may proceed. A denied
// caller gets 404 so notebook IDs do not leak.
func (c *Controller) requireAccess(ctx echo.Context, userID, notebookID string) (bool, error) {
	allowed, err := c.DS.CanAccess(userID, notebookID)
	if err != nil {
		return false, c.HandleError(ctx, err, "Failed to check notebook access", http.StatusInternalServerError)
	}
	if !allowed {
		return false, c.HandleError(ctx, nil, "Notebook not found", http.StatusNotFound)
	}
	return true, nil
}

func (c *Controller) invalidateNotebooks(userID string) {
	c.notebookCache.Delete(notebookCacheKey(userID))
}
