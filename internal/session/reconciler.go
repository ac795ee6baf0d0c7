// Package session implements the notebook session reconciler: the
// component that keeps the working transcript and notes of the selected
// notebook consistent with live capture input, user edits, and the
// lazily-created detail row in the persistence store.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/scribe-notes/scribe/internal/capture"
	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/errors"
)

// Sentinel errors surfaced as user-facing prompts, not crashes.
var (
	// ErrNoNotebookSelected is returned when capture is started without an
	// active notebook.
	ErrNoNotebookSelected = errors.NewStd("no notebook selected")
	// ErrNotAuthorized is returned when the session user may not view the
	// requested notebook.
	ErrNotAuthorized = errors.NewStd("not authorized for this notebook")
)

// detail row column names used for partial updates
const (
	fieldSpeechText = "speech_text"
	fieldNotes      = "notes"
)

// State is a snapshot of the in-memory session.
type State struct {
	SelectedNotebookID string
	Transcript         string
	Notes              string
	Capturing          bool
}

// Reconciler owns the mapping from the selected notebook to its working
// transcript and notes, mediating between capture events, user edits, and
// the persisted record which may not exist yet for a fresh notebook.
//
// All mutation goes through the session mutex; store writes additionally
// serialize on a write mutex with per-field sequence numbers so the last
// edit wins by call order even when earlier writes complete late.
type Reconciler struct {
	ds     datastore.Interface
	source capture.Source
	logger *slog.Logger

	mu         sync.Mutex
	userID     string
	notebooks  []datastore.Notebook
	selected   string
	transcript string
	notes      string
	capturing  bool

	// issued tracks the newest sequence handed out per field; persisted
	// tracks the newest sequence actually written. Guarded by mu (issued)
	// and writeMu (persisted).
	issued    map[string]uint64
	persisted map[string]uint64
	writeMu   sync.Mutex

	onError func(error)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithErrorHandler installs the callback that surfaces asynchronous
// failures (capture errors, late persistence failures) to the UI layer.
func WithErrorHandler(fn func(error)) Option {
	return func(r *Reconciler) {
		r.onError = fn
	}
}

// NewReconciler creates a reconciler for one user's session and installs
// itself as the capture source's consumer.
func NewReconciler(userID string, ds datastore.Interface, source capture.Source, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		ds:        ds,
		source:    source,
		logger:    logger,
		userID:    userID,
		issued:    make(map[string]uint64),
		persisted: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	source.SetHandlers(r.handleCaptureResult, r.handleCaptureError)
	return r
}

// State returns a snapshot of the session.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		SelectedNotebookID: r.selected,
		Transcript:         r.transcript,
		Notes:              r.notes,
		Capturing:          r.capturing,
	}
}

// Notebooks returns the visible notebook list, including optimistic
// mutations not yet confirmed by the store.
func (r *Reconciler) Notebooks() []datastore.Notebook {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]datastore.Notebook, len(r.notebooks))
	copy(out, r.notebooks)
	return out
}

// RefreshNotebooks replaces the visible list with the authoritative one
// from the store. On failure the current list is left unchanged.
func (r *Reconciler) RefreshNotebooks(ctx context.Context) error {
	notebooks, err := r.ds.ListNotebooks(r.userID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.notebooks = notebooks
	r.mu.Unlock()
	return nil
}

// SelectNotebook makes id the active notebook and loads its detail row.
// A missing row is the empty-but-valid state for a fresh notebook: both
// working fields become empty strings and no error is surfaced. Any other
// lookup failure leaves the prior session state untouched.
//
// An active capture session is force-stopped and its transcript persisted
// before the switch, so no capture output bleeds into the new notebook.
func (r *Reconciler) SelectNotebook(ctx context.Context, id string) error {
	allowed, err := r.ds.CanAccess(r.userID, id)
	if err != nil {
		return err
	}
	if !allowed {
		return errors.New(ErrNotAuthorized).
			Component("session").
			Category(errors.CategoryAuth).
			Context("notebook_id", id).
			Build()
	}

	if err := r.StopCapture(ctx); err != nil {
		// The old notebook's transcript could not be saved; refuse to
		// switch rather than silently dropping it.
		return err
	}

	transcript, notes := "", ""
	detail, err := r.ds.GetNotebookDetail(id)
	switch {
	case err == nil:
		transcript, notes = detail.SpeechText, detail.Notes
	case errors.IsNotFound(err):
		// No detail row yet. Expected for a fresh notebook.
	default:
		return err
	}

	r.mu.Lock()
	r.selected = id
	r.transcript = transcript
	r.notes = notes
	r.mu.Unlock()

	r.logger.Debug("notebook selected", "notebook_id", id)
	return nil
}

// StartCapture activates the capture source for the selected notebook.
// Calling it while already capturing is a no-op; the source handle is
// exclusive.
func (r *Reconciler) StartCapture(ctx context.Context) error {
	r.mu.Lock()
	if r.selected == "" {
		r.mu.Unlock()
		return errors.New(ErrNoNotebookSelected).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
	if r.capturing {
		r.mu.Unlock()
		return nil
	}
	r.capturing = true
	r.mu.Unlock()

	if err := r.source.Start(ctx); err != nil && !errors.Is(err, capture.ErrSourceBusy) {
		r.mu.Lock()
		r.capturing = false
		r.mu.Unlock()
		return errors.New(err).
			Component("session").
			Category(errors.CategoryCapture).
			Build()
	}
	return nil
}

// StopCapture deactivates the capture source and persists the working
// transcript when one exists. A persistence failure is returned but does
// not re-activate capture or revert the transcript.
func (r *Reconciler) StopCapture(ctx context.Context) error {
	r.mu.Lock()
	if !r.capturing {
		r.mu.Unlock()
		return nil
	}
	r.capturing = false
	notebookID := r.selected
	transcript := r.transcript
	seq := r.nextSeqLocked(fieldSpeechText)
	r.mu.Unlock()

	if err := r.source.Stop(); err != nil {
		r.logger.Warn("capture source stop failed", "error", err)
	}

	if notebookID == "" || transcript == "" {
		return nil
	}
	return r.persistField(ctx, notebookID, fieldSpeechText, transcript, seq)
}

// EditNotes sets the working notes immediately and writes them through to
// the store. Writes for the same notebook serialize so the last edit wins
// by call order, not by response arrival.
func (r *Reconciler) EditNotes(ctx context.Context, text string) error {
	r.mu.Lock()
	r.notes = text
	notebookID := r.selected
	seq := r.nextSeqLocked(fieldNotes)
	r.mu.Unlock()

	if notebookID == "" {
		return nil
	}
	return r.persistField(ctx, notebookID, fieldNotes, text, seq)
}

// RenameNotebook validates the new title, applies it optimistically to the
// visible list, then writes through. On failure the authoritative list is
// refetched instead of undoing the local mutation, which may already have
// been superseded.
func (r *Reconciler) RenameNotebook(ctx context.Context, id, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return errors.Newf("notebook title must not be empty").
			Component("session").
			Category(errors.CategoryValidation).
			Context("notebook_id", id).
			Build()
	}

	r.mu.Lock()
	for i := range r.notebooks {
		if r.notebooks[i].ID == id {
			r.notebooks[i].Title = newTitle
			break
		}
	}
	r.mu.Unlock()

	if err := r.ds.UpdateNotebookTitle(id, newTitle); err != nil {
		if refreshErr := r.RefreshNotebooks(ctx); refreshErr != nil {
			r.logger.Error("list refresh after failed rename also failed", "error", refreshErr)
		}
		return err
	}
	return nil
}

// DeleteNotebook optimistically removes the notebook from the visible list
// and clears session state when it was selected, then issues the delete.
// On failure the list is restored by an authoritative refetch, not by
// reverting in place.
func (r *Reconciler) DeleteNotebook(ctx context.Context, id string) error {
	r.mu.Lock()
	kept := r.notebooks[:0]
	for _, nb := range r.notebooks {
		if nb.ID != id {
			kept = append(kept, nb)
		}
	}
	r.notebooks = kept

	wasSelected := r.selected == id
	wasCapturing := r.capturing
	if wasSelected {
		r.selected = ""
		r.transcript = ""
		r.notes = ""
		r.capturing = false
	}
	r.mu.Unlock()

	if wasSelected && wasCapturing {
		if err := r.source.Stop(); err != nil {
			r.logger.Warn("capture source stop failed", "error", err)
		}
	}

	if err := r.ds.DeleteNotebook(id); err != nil {
		if refreshErr := r.RefreshNotebooks(ctx); refreshErr != nil {
			r.logger.Error("list refresh after failed delete also failed", "error", refreshErr)
		}
		return err
	}
	return nil
}

// handleCaptureResult replaces the working transcript with the cumulative
// text of all recognized segments. The source delivers the full growing
// result set on every event, so the previous value is never appended to.
func (r *Reconciler) handleCaptureResult(cumulative string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing || r.selected == "" {
		// Either navigation stopped the session or a late event arrived
		// after stop. Dropping it keeps notebooks isolated.
		return
	}
	r.transcript = cumulative
}

// handleCaptureError tolerates no-speech events and stops capture on
// anything else, surfacing the failure instead of leaving the source in an
// ambiguous running state.
func (r *Reconciler) handleCaptureError(kind capture.ErrorKind, err error) {
	if kind == capture.ErrorNoSpeech {
		r.logger.Debug("no speech detected, capture continues")
		return
	}

	r.logger.Error("capture error, stopping capture", "kind", string(kind), "error", err)
	r.mu.Lock()
	wasCapturing := r.capturing
	r.capturing = false
	r.mu.Unlock()

	if wasCapturing {
		if stopErr := r.source.Stop(); stopErr != nil {
			r.logger.Warn("capture source stop failed", "error", stopErr)
		}
	}
	r.surfaceError(err)
}

// nextSeqLocked hands out the next write sequence for a field. Caller
// holds mu.
func (r *Reconciler) nextSeqLocked(field string) uint64 {
	key := r.selected + "/" + field
	r.issued[key]++
	return r.issued[key]
}

// persistField implements the check-then-act save for one detail field:
// look up the row, insert when missing, update otherwise. Losing the
// first-save insert race produces a retryable conflict, and the sequence
// re-runs once; the row now exists and is updated (the store's unique
// index on the notebook id guarantees at most one winner).
//
// Writes serialize on writeMu. A write whose sequence is older than the
// newest persisted one for the field is skipped: its value has already
// been superseded by a later edit.
func (r *Reconciler) persistField(ctx context.Context, notebookID, field, value string, seq uint64) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	key := notebookID + "/" + field
	if seq <= r.persisted[key] {
		r.logger.Debug("skipping superseded write", "notebook_id", notebookID, "field", field, "seq", seq)
		return nil
	}

	err := r.saveOnce(notebookID, field, value)
	if err != nil && errors.IsRetryable(err) {
		// Lost the first-insert race; the winner's row is there now.
		r.logger.Debug("detail insert lost the race, retrying as update",
			"notebook_id", notebookID, "field", field)
		err = r.saveOnce(notebookID, field, value)
	}
	if err != nil {
		// A failure for a notebook that is no longer selected is stale; it
		// must not disturb the current session.
		r.mu.Lock()
		stale := r.selected != notebookID
		r.mu.Unlock()
		if stale {
			r.logger.Warn("discarding stale persistence failure",
				"notebook_id", notebookID, "field", field, "error", err)
			return nil
		}
		return err
	}

	r.persisted[key] = seq
	return nil
}

// saveOnce runs one pass of the check-then-act sequence.
func (r *Reconciler) saveOnce(notebookID, field, value string) error {
	_, err := r.ds.GetNotebookDetail(notebookID)
	switch {
	case errors.IsNotFound(err):
		detail := datastore.NotebookDetail{NotebookID: notebookID}
		switch field {
		case fieldSpeechText:
			detail.SpeechText = value
		case fieldNotes:
			detail.Notes = value
		}
		return r.ds.InsertNotebookDetail(&detail)
	case err != nil:
		// Lookup failed for a real reason; abort without writing.
		return err
	default:
		return r.ds.UpdateNotebookDetail(notebookID, map[string]any{field: value})
	}
}

func (r *Reconciler) surfaceError(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}
