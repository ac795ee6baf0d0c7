package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scribe-notes/scribe/internal/capture"
	"github.com/scribe-notes/scribe/internal/errors"
	"github.com/scribe-notes/scribe/internal/security"
	"github.com/scribe-notes/scribe/internal/session"
)

// captureResultRequest is one recognition event from the browser. The
// transcript carries the cumulative text of all segments so far; a
// non-empty error field reports a recognizer failure instead.
type captureResultRequest struct {
	Transcript string `json:"transcript"`
	Error      string `json:"error"`
}

// captureStateResponse reports the session after a capture transition.
type captureStateResponse struct {
	NotebookID string `json:"notebook_id"`
	Capturing  bool   `json:"capturing"`
	Transcript string `json:"transcript"`
}

// initCaptureRoutes registers the capture lifecycle and ingest routes.
func (c *Controller) initCaptureRoutes() {
	g := c.protected().Group("/notebooks/:id/capture")
	g.POST("/start", c.StartCapture)
	g.POST("/stop", c.StopCapture)
	g.POST("/result", c.PushCaptureResult)
}

// StartCapture begins a capture session for the notebook. The notebook
// must already be the selected one.
func (c *Controller) StartCapture(ctx echo.Context) error {
	notebookID := ctx.Param("id")
	r := c.reconciler(ctx)

	if r.State().SelectedNotebookID != notebookID {
		return c.HandleError(ctx, session.ErrNoNotebookSelected,
			"Select the notebook before starting capture", http.StatusBadRequest)
	}

	if err := r.StartCapture(ctx.Request().Context()); err != nil {
		if errors.Is(err, session.ErrNoNotebookSelected) {
			return c.HandleError(ctx, err, "Select a notebook before starting capture", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to start capture", http.StatusInternalServerError)
	}

	return c.captureState(ctx, r)
}

// StopCapture ends the capture session and persists the transcript.
func (c *Controller) StopCapture(ctx echo.Context) error {
	r := c.reconciler(ctx)

	if err := r.StopCapture(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "Failed to save transcript", http.StatusInternalServerError)
	}

	return c.captureState(ctx, r)
}

// PushCaptureResult ingests one recognition event. Events for a notebook
// that is no longer selected are dropped; ingest never fails the client.
func (c *Controller) PushCaptureResult(ctx echo.Context) error {
	notebookID := ctx.Param("id")
	userID := security.UserID(ctx)

	var req captureResultRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	r := c.Sessions.Get(userID)
	if r.State().SelectedNotebookID != notebookID {
		c.Debug("dropping capture event for deselected notebook %s", notebookID)
		return ctx.NoContent(http.StatusNoContent)
	}

	source := c.Sessions.Source(userID)
	if req.Error != "" {
		kind := capture.ErrorOther
		if req.Error == string(capture.ErrorNoSpeech) {
			kind = capture.ErrorNoSpeech
		}
		source.PushError(kind, req.Error)
	} else {
		source.Push(req.Transcript)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) captureState(ctx echo.Context, r *session.Reconciler) error {
	state := r.State()
	return ctx.JSON(http.StatusOK, captureStateResponse{
		NotebookID: state.SelectedNotebookID,
		Capturing:  state.Capturing,
		Transcript: state.Transcript,
	})
}
