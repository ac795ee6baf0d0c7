package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scribe-notes/scribe/internal/errors"
	"github.com/scribe-notes/scribe/internal/security"
)

// shareRequest grants another user access to a notebook, addressed by
// their account email.
type shareRequest struct {
	NotebookID string `json:"notebookId"`
	Email      string `json:"email"`
}

// initShareRoutes registers the sharing route.
func (c *Controller) initShareRoutes() {
	c.protected().POST("/share", c.ShareNotebook)
}

// ShareNotebook grants the user behind the given email access to the
// notebook. Sharing with someone who already has access succeeds without
// a duplicate grant.
func (c *Controller) ShareNotebook(ctx echo.Context) error {
	var req shareRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	if req.NotebookID == "" || req.Email == "" {
		return c.HandleError(ctx, nil, "Notebook ID and email are required", http.StatusBadRequest)
	}

	if ok, err := c.requireAccess(ctx, security.UserID(ctx), req.NotebookID); !ok {
		return err
	}

	grantee, err := c.DS.GetUserByEmail(req.Email)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "User with this email not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to look up user", http.StatusInternalServerError)
	}

	if err := c.DS.ShareNotebook(req.NotebookID, grantee.ID); err != nil {
		if errors.HasCategory(err, errors.CategoryConflict) {
			// already shared, treat as success
			return ctx.JSON(http.StatusOK, map[string]string{"message": "Notebook shared successfully"})
		}
		return c.HandleError(ctx, err, "Failed to share notebook", http.StatusInternalServerError)
	}

	c.invalidateNotebooks(grantee.ID)
	return ctx.JSON(http.StatusOK, map[string]string{"message": "Notebook shared successfully"})
}
