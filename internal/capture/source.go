// Package capture defines the live speech-to-text input abstraction.
// A source emits the cumulative text of all recognized segments on every
// event, never a delta; consumers replace their working transcript
// wholesale on each result.
package capture

import (
	"context"

	"github.com/scribe-notes/scribe/internal/errors"
)

// ErrorKind classifies capture errors. Only no-speech is tolerated by
// consumers; anything else stops the session.
type ErrorKind string

const (
	// ErrorNoSpeech means the recognizer heard nothing usable. Logged and
	// ignored, capture continues.
	ErrorNoSpeech ErrorKind = "no-speech"
	// ErrorOther is the opaque catch-all for recognizer failures.
	ErrorOther ErrorKind = "other"
)

// ErrSourceBusy is returned when Start is called on an already active
// source owned by another consumer. The capture handle is exclusive.
var ErrSourceBusy = errors.NewStd("capture source already active")

// ResultHandler receives the cumulative transcript after each recognition
// event.
type ResultHandler func(cumulative string)

// ErrorHandler receives capture failures with their classification.
type ErrorHandler func(kind ErrorKind, err error)

// Source is the live capture contract. Implementations deliver results and
// errors on the handlers installed via SetHandlers; both may be called from
// the goroutine servicing the underlying input.
type Source interface {
	// Start activates the source. Starting an already active source is an
	// error; the handle is exclusive.
	Start(ctx context.Context) error

	// Stop deactivates the source. Stopping an inactive source is a no-op.
	Stop() error

	// Active reports whether a capture session is running.
	Active() bool

	// SetHandlers installs the result and error callbacks. Must be called
	// before Start.
	SetHandlers(onResult ResultHandler, onError ErrorHandler)
}
