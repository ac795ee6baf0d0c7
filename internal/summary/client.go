// Package summary generates concise summaries of captured speech text by
// calling an OpenAI-compatible chat completions endpoint.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/scribe-notes/scribe/internal/conf"
	"github.com/scribe-notes/scribe/internal/errors"
	"github.com/scribe-notes/scribe/internal/httpclient"
	"github.com/scribe-notes/scribe/internal/logging"
)

// userPromptPrefix precedes the transcript in the user message.
const userPromptPrefix = "Summarize the following text: "

// limit on how much of an upstream error body lands in logs and errors
const maxErrorBodyBytes = 2048

// chat completions wire format, request side
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chat completions wire format, response side
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client calls the configured chat completions provider.
type Client struct {
	settings *conf.SummarySettings
	http     *httpclient.Client
	logger   *slog.Logger
}

// NewClient creates a summary client from the configured provider
// settings.
func NewClient(settings *conf.SummarySettings) *Client {
	return &Client{
		settings: settings,
		http:     httpclient.New(nil),
		logger:   logging.ForService("summary"),
	}
}

// Summarize produces a short summary of the given speech text. A blank or
// whitespace-only transcript is rejected without a provider call. Provider
// failures come back as summary-category errors carrying the upstream
// detail.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", errors.Newf("transcript is required").
			Component("summary").
			Category(errors.CategoryValidation).
			Build()
	}
	if !c.settings.Enabled {
		return "", errors.Newf("summarization is disabled").
			Component("summary").
			Category(errors.CategoryConfig).
			Build()
	}

	payload := chatRequest{
		Model: c.settings.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.settings.SystemPrompt},
			{Role: "user", Content: userPromptPrefix + transcript},
		},
		MaxTokens: c.settings.MaxTokens,
	}

	req, err := c.buildRequest(ctx, payload)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", errors.New(err).
			Component("summary").
			Category(errors.CategoryNetwork).
			Context("endpoint", c.settings.Endpoint).
			Build()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.New(err).
			Component("summary").
			Category(errors.CategoryNetwork).
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		detail := truncate(string(body), maxErrorBodyBytes)
		c.logger.Error("summary provider returned error",
			"status", resp.StatusCode, "body", detail)
		return "", errors.Newf("summary provider returned status %d: %s", resp.StatusCode, detail).
			Component("summary").
			Category(errors.CategorySummary).
			Context("status", resp.StatusCode).
			Build()
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.New(err).
			Component("summary").
			Category(errors.CategorySummary).
			Build()
	}
	if parsed.Error != nil {
		return "", errors.Newf("summary provider error: %s", parsed.Error.Message).
			Component("summary").
			Category(errors.CategorySummary).
			Build()
	}
	if len(parsed.Choices) == 0 {
		return "", errors.Newf("summary provider returned no choices").
			Component("summary").
			Category(errors.CategorySummary).
			Build()
	}

	summary := strings.TrimSpace(parsed.Choices[0].Message.Content)
	c.logger.Debug("summary generated",
		"transcript_bytes", len(transcript), "summary_bytes", len(summary))
	return summary, nil
}

func (c *Client) buildRequest(ctx context.Context, payload chatRequest) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.New(err).
			Component("summary").
			Category(errors.CategorySummary).
			Build()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.Endpoint, strings.NewReader(string(data)))
	if err != nil {
		return nil, errors.New(err).
			Component("summary").
			Category(errors.CategorySummary).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.settings.APIKey))
	return req, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
