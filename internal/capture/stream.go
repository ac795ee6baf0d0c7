package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/scribe-notes/scribe/internal/errors"
)

// StreamSource is the production capture source. The browser runs the
// actual speech recognizer and posts each cumulative result to the capture
// ingest route, which forwards it here via Push. Events arriving while the
// source is inactive are dropped.
type StreamSource struct {
	mu       sync.Mutex
	active   bool
	onResult ResultHandler
	onError  ErrorHandler
	maxBytes int
	logger   *slog.Logger
}

// NewStreamSource creates a stream-fed capture source. maxBytes bounds a
// single cumulative transcript event; zero disables the bound.
func NewStreamSource(maxBytes int, logger *slog.Logger) *StreamSource {
	return &StreamSource{
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// SetHandlers installs the result and error callbacks.
func (s *StreamSource) SetHandlers(onResult ResultHandler, onError ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = onResult
	s.onError = onError
}

// Start activates the source. The handle is exclusive: a second Start
// while active returns ErrSourceBusy.
func (s *StreamSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrSourceBusy
	}
	s.active = true
	if s.logger != nil {
		s.logger.Debug("capture source started")
	}
	return nil
}

// Stop deactivates the source. Safe to call when inactive.
func (s *StreamSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active && s.logger != nil {
		s.logger.Debug("capture source stopped")
	}
	s.active = false
	return nil
}

// Active reports whether a capture session is running.
func (s *StreamSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Push delivers a cumulative recognition result from the ingest route.
// Results for an inactive source are dropped, matching a recognizer that
// keeps talking after the user hit stop.
func (s *StreamSource) Push(cumulative string) {
	s.mu.Lock()
	active := s.active
	onResult := s.onResult
	onError := s.onError
	maxBytes := s.maxBytes
	s.mu.Unlock()

	if !active {
		if s.logger != nil {
			s.logger.Debug("dropping capture result for inactive source", "bytes", len(cumulative))
		}
		return
	}

	if maxBytes > 0 && len(cumulative) > maxBytes {
		if onError != nil {
			onError(ErrorOther, errors.Newf("capture event of %d bytes exceeds limit %d", len(cumulative), maxBytes).
				Component("capture").
				Category(errors.CategoryCapture).
				Context("bytes", len(cumulative)).
				Build())
		}
		return
	}

	if onResult != nil {
		onResult(cumulative)
	}
}

// PushError delivers a recognizer error from the ingest route.
func (s *StreamSource) PushError(kind ErrorKind, message string) {
	s.mu.Lock()
	active := s.active
	onError := s.onError
	s.mu.Unlock()

	if !active || onError == nil {
		return
	}
	onError(kind, errors.Newf("recognizer error: %s", message).
		Component("capture").
		Category(errors.CategoryCapture).
		Context("kind", string(kind)).
		Build())
}
