package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scribe-notes/scribe/internal/errors"
)

type summaryRequest struct {
	Transcript string `json:"transcript"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// initSummaryRoutes registers the summarization route.
func (c *Controller) initSummaryRoutes() {
	c.protected().POST("/summary", c.SummarizeTranscript)
}

// SummarizeTranscript generates a concise summary of the given speech
// text via the configured provider.
func (c *Controller) SummarizeTranscript(ctx echo.Context) error {
	var req summaryRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	if c.summarizer == nil {
		return c.HandleError(ctx, nil, "Summarization is not configured", http.StatusServiceUnavailable)
	}

	summary, err := c.summarizer.Summarize(ctx.Request().Context(), req.Transcript)
	if err != nil {
		switch {
		case errors.HasCategory(err, errors.CategoryValidation):
			return c.HandleError(ctx, err, "Transcript is required", http.StatusBadRequest)
		case errors.HasCategory(err, errors.CategoryConfig):
			return c.HandleError(ctx, err, "Summarization is disabled", http.StatusServiceUnavailable)
		default:
			return c.HandleError(ctx, err, "Failed to generate summary", http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusOK, summaryResponse{Summary: summary})
}
