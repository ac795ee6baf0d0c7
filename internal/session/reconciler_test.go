package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scribe-notes/scribe/internal/capture"
	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/errors"
)

// testStore adapts the concrete gorm store to the full store interface
// for in-memory tests.
type testStore struct {
	*datastore.DataStore
}

func (testStore) Open() error { return nil }

func newTestStore(t *testing.T) testStore {
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

	return testStore{&datastore.DataStore{DB: db}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) (*Reconciler, *capture.StreamSource, testStore, datastore.Notebook) {
	t.Helper()

	ds := newTestStore(t)
	user := datastore.User{Email: "owner@example.com", FullName: "owner", PasswordHash: "x"}
	require.NoError(t, ds.CreateUser(&user))
	notebook, err := ds.CreateNotebook(user.ID, "Meeting")
	require.NoError(t, err)

	source := capture.NewStreamSource(0, discardLogger())
	r := NewReconciler(user.ID, ds, source, discardLogger())
	require.NoError(t, r.RefreshNotebooks(context.Background()))
	return r, source, ds, notebook
}

func detailRowCount(t *testing.T, ds testStore, notebookID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, ds.DB.Model(&datastore.NotebookDetail{}).
		Where("notebook_id = ?", notebookID).Count(&n).Error)
	return n
}

func TestSelectNotebookWithoutDetailRow(t *testing.T) {
	t.Parallel()
	r, _, ds, nb := newTestSession(t)

	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))

	state := r.State()
	assert.Equal(t, nb.ID, state.SelectedNotebookID)
	assert.Empty(t, state.Transcript)
	assert.Empty(t, state.Notes)
	assert.Equal(t, int64(0), detailRowCount(t, ds, nb.ID))
}

func TestSelectNotebookLoadsExistingDetail(t *testing.T) {
	t.Parallel()
	r, _, ds, nb := newTestSession(t)
	require.NoError(t, ds.InsertNotebookDetail(&datastore.NotebookDetail{
		NotebookID: nb.ID,
		SpeechText: "hello there",
		Notes:      "remember this",
	}))

	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))

	state := r.State()
	assert.Equal(t, "hello there", state.Transcript)
	assert.Equal(t, "remember this", state.Notes)
}

func TestSelectNotebookDeniedForStranger(t *testing.T) {
	t.Parallel()
	r, _, ds, _ := newTestSession(t)
	other := datastore.User{Email: "other@example.com", FullName: "other", PasswordHash: "x"}
	require.NoError(t, ds.CreateUser(&other))
	theirs, err := ds.CreateNotebook(other.ID, "Private")
	require.NoError(t, err)

	err = r.SelectNotebook(context.Background(), theirs.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryAuth))
	assert.Empty(t, r.State().SelectedNotebookID)
}

func TestStartCaptureRequiresSelection(t *testing.T) {
	t.Parallel()
	r, _, _, nb := newTestSession(t)

	err := r.StartCapture(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoNotebookSelected))
	assert.False(t, r.State().Capturing)

	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.StartCapture(context.Background()))
	assert.True(t, r.State().Capturing)

	// second start is a no-op, not an error
	require.NoError(t, r.StartCapture(context.Background()))
	assert.True(t, r.State().Capturing)
}

func TestCaptureResultReplacesTranscript(t *testing.T) {
	t.Parallel()
	r, source, _, nb := newTestSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.StartCapture(context.Background()))

	source.Push("hello")
	source.Push("hello world")
	source.Push("hello world again")

	// each event carries the full cumulative text, never a delta
	assert.Equal(t, "hello world again", r.State().Transcript)
}

func TestStopCapturePersistsTranscript(t *testing.T) {
	t.Parallel()
	r, source, ds, nb := newTestSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.StartCapture(context.Background()))

	source.Push("dictated text")
	require.NoError(t, r.StopCapture(context.Background()))

	assert.False(t, r.State().Capturing)
	detail, err := ds.GetNotebookDetail(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "dictated text", detail.SpeechText)
	assert.Equal(t, int64(1), detailRowCount(t, ds, nb.ID))
}

func TestStopCaptureWithEmptyTranscriptWritesNothing(t *testing.T) {
	t.Parallel()
	r, _, ds, nb := newTestSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.StartCapture(context.Background()))

	require.NoError(t, r.StopCapture(context.Background()))

	assert.Equal(t, int64(0), detailRowCount(t, ds, nb.ID))
}

func TestSelectNotebookForceStopsCapture(t *testing.T) {
	t.Parallel()
	r, source, ds, nb := newTestSession(t)
	other, err := ds.CreateNotebook(r.userID, "Second")
	require.NoError(t, err)

	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.StartCapture(context.Background()))
	source.Push("first notebook speech")

	require.NoError(t, r.SelectNotebook(context.Background(), other.ID))

	state := r.State()
	assert.False(t, state.Capturing)
	assert.Equal(t, other.ID, state.SelectedNotebookID)
	assert.Empty(t, state.Transcript)

	// the old notebook kept its transcript
	detail, err := ds.GetNotebookDetail(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "first notebook speech", detail.SpeechText)

	// a late event for the old session must not bleed into the new one
	source.Push("stray event")
	assert.Empty(t, r.State().Transcript)
}

func TestEditNotesCreatesRowLazily(t *testing.T) {
	t.Parallel()
	r, _, ds, nb := newTestSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))

	require.NoError(t, r.EditNotes(context.Background(), "first draft"))
	require.NoError(t, r.EditNotes(context.Background(), "second draft"))

	assert.Equal(t, "second draft", r.State().Notes)
	detail, err := ds.GetNotebookDetail(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "second draft", detail.Notes)
	assert.Equal(t, int64(1), detailRowCount(t, ds, nb.ID))
}

func TestEditNotesPreservesTranscriptColumn(t *testing.T) {
	t.Parallel()
	r, source, ds, nb := newTestSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.StartCapture(context.Background()))
	source.Push("spoken words")
	require.NoError(t, r.StopCapture(context.Background()))

	require.NoError(t, r.EditNotes(context.Background(), "typed words"))

	detail, err := ds.GetNotebookDetail(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "spoken words", detail.SpeechText)
	assert.Equal(t, "typed words", detail.Notes)
}

func TestSupersededWriteIsSkipped(t *testing.T) {
	t.Parallel()
	r, _, ds, nb := newTestSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))

	// seq 2 lands first; the late seq 1 completion must not clobber it
	require.NoError(t, r.persistField(context.Background(), nb.ID, fieldNotes, "newer", 2))
	require.NoError(t, r.persistField(context.Background(), nb.ID, fieldNotes, "older", 1))

	detail, err := ds.GetNotebookDetail(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "newer", detail.Notes)
}

// raceStore makes the reconciler lose the first-save race once: the
// lookup reports no row while a rival insert sneaks in underneath.
type raceStore struct {
	testStore
	armed bool
}

func (s *raceStore) GetNotebookDetail(notebookID string) (datastore.NotebookDetail, error) {
	if s.armed {
		s.armed = false
		rival := datastore.NotebookDetail{NotebookID: notebookID, Notes: "rival notes"}
		if err := s.testStore.InsertNotebookDetail(&rival); err != nil {
			return datastore.NotebookDetail{}, err
		}
		return datastore.NotebookDetail{}, errors.Newf("notebook detail not found").
			Category(errors.CategoryNotFound).Build()
	}
	return s.testStore.GetNotebookDetail(notebookID)
}

func TestFirstSaveRaceRetriesAsUpdate(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	user := datastore.User{Email: "owner@example.com", FullName: "owner", PasswordHash: "x"}
	require.NoError(t, ds.CreateUser(&user))
	nb, err := ds.CreateNotebook(user.ID, "Meeting")
	require.NoError(t, err)

	racy := &raceStore{testStore: ds}
	r := NewReconciler(user.ID, racy, capture.NewStreamSource(0, discardLogger()), discardLogger())
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))

	racy.armed = true
	require.NoError(t, r.EditNotes(context.Background(), "my notes"))

	// exactly one row survives, carrying the retried write
	assert.Equal(t, int64(1), detailRowCount(t, ds, nb.ID))
	detail, err := ds.GetNotebookDetail(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "my notes", detail.Notes)
}

// failStore rejects the named mutations while delegating everything else.
type failStore struct {
	testStore
	failDelete bool
	failRename bool
	failUpdate bool
}

func (s *failStore) DeleteNotebook(id string) error {
	if s.failDelete {
		return errors.Newf("delete rejected").Category(errors.CategoryDatabase).Build()
	}
	return s.testStore.DeleteNotebook(id)
}

func (s *failStore) UpdateNotebookTitle(id, title string) error {
	if s.failRename {
		return errors.Newf("rename rejected").Category(errors.CategoryDatabase).Build()
	}
	return s.testStore.UpdateNotebookTitle(id, title)
}

func (s *failStore) UpdateNotebookDetail(notebookID string, fields map[string]any) error {
	if s.failUpdate {
		return errors.Newf("update rejected").Category(errors.CategoryDatabase).Build()
	}
	return s.testStore.UpdateNotebookDetail(notebookID, fields)
}

func newFailSession(t *testing.T) (*Reconciler, *failStore, datastore.Notebook) {
	t.Helper()
	ds := newTestStore(t)
	user := datastore.User{Email: "owner@example.com", FullName: "owner", PasswordHash: "x"}
	require.NoError(t, ds.CreateUser(&user))
	nb, err := ds.CreateNotebook(user.ID, "Meeting")
	require.NoError(t, err)

	fs := &failStore{testStore: ds}
	r := NewReconciler(user.ID, fs, capture.NewStreamSource(0, discardLogger()), discardLogger())
	require.NoError(t, r.RefreshNotebooks(context.Background()))
	return r, fs, nb
}

func TestDeleteNotebookOptimistic(t *testing.T) {
	t.Parallel()
	r, _, nb := newFailSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.EditNotes(context.Background(), "doomed"))

	require.NoError(t, r.DeleteNotebook(context.Background(), nb.ID))

	assert.Empty(t, r.Notebooks())
	state := r.State()
	assert.Empty(t, state.SelectedNotebookID)
	assert.Empty(t, state.Transcript)
	assert.Empty(t, state.Notes)
}

func TestDeleteNotebookFailureRestoresList(t *testing.T) {
	t.Parallel()
	r, fs, nb := newFailSession(t)
	fs.failDelete = true

	err := r.DeleteNotebook(context.Background(), nb.ID)
	require.Error(t, err)

	// the optimistic removal was rolled back from the store's truth
	notebooks := r.Notebooks()
	require.Len(t, notebooks, 1)
	assert.Equal(t, nb.ID, notebooks[0].ID)
}

func TestRenameNotebookRejectsBlankTitle(t *testing.T) {
	t.Parallel()
	r, fs, nb := newFailSession(t)

	err := r.RenameNotebook(context.Background(), nb.ID, "   ")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	// no optimistic mutation, no store write
	assert.Equal(t, "Meeting", r.Notebooks()[0].Title)
	stored, err := fs.GetNotebook(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meeting", stored.Title)
}

func TestRenameNotebookTrimsAndPersists(t *testing.T) {
	t.Parallel()
	r, fs, nb := newFailSession(t)

	require.NoError(t, r.RenameNotebook(context.Background(), nb.ID, "  Standup  "))

	assert.Equal(t, "Standup", r.Notebooks()[0].Title)
	stored, err := fs.GetNotebook(nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "Standup", stored.Title)
}

func TestRenameNotebookFailureRefetchesList(t *testing.T) {
	t.Parallel()
	r, fs, nb := newFailSession(t)
	fs.failRename = true

	err := r.RenameNotebook(context.Background(), nb.ID, "New Name")
	require.Error(t, err)
	assert.Equal(t, "Meeting", r.Notebooks()[0].Title)
	_ = nb
}

func TestStalePersistFailureIsDiscarded(t *testing.T) {
	t.Parallel()
	r, fs, nb := newFailSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.EditNotes(context.Background(), "seed"))

	other, err := fs.CreateNotebook(r.userID, "Second")
	require.NoError(t, err)
	require.NoError(t, r.SelectNotebook(context.Background(), other.ID))

	// a failing write tagged with the deselected notebook resolves quietly
	fs.failUpdate = true
	assert.NoError(t, r.persistField(context.Background(), nb.ID, fieldNotes, "late", 99))
}

func TestNoSpeechErrorKeepsCapturing(t *testing.T) {
	t.Parallel()
	r, source, _, nb := newTestSession(t)
	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.StartCapture(context.Background()))

	source.PushError(capture.ErrorNoSpeech, "no-speech")

	assert.True(t, r.State().Capturing)
	assert.True(t, source.Active())
}

func TestRecognizerErrorStopsCapture(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	user := datastore.User{Email: "owner@example.com", FullName: "owner", PasswordHash: "x"}
	require.NoError(t, ds.CreateUser(&user))
	nb, err := ds.CreateNotebook(user.ID, "Meeting")
	require.NoError(t, err)

	var surfaced error
	source := capture.NewStreamSource(0, discardLogger())
	r := NewReconciler(user.ID, ds, source, discardLogger(),
		WithErrorHandler(func(err error) { surfaced = err }))

	require.NoError(t, r.SelectNotebook(context.Background(), nb.ID))
	require.NoError(t, r.StartCapture(context.Background()))

	source.PushError(capture.ErrorOther, "audio-capture")

	assert.False(t, r.State().Capturing)
	assert.False(t, source.Active())
	assert.Error(t, surfaced)
}
