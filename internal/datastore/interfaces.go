// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"

	"github.com/scribe-notes/scribe/internal/conf"
	"github.com/scribe-notes/scribe/internal/errors"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines
// the operations the rest of the application consumes.
type Interface interface {
	Open() error
	Close() error

	// users
	CreateUser(user *User) error
	GetUser(id string) (User, error)
	GetUserByEmail(email string) (User, error)

	// notebooks
	ListNotebooks(userID string) ([]Notebook, error)
	CreateNotebook(userID, title string) (Notebook, error)
	GetNotebook(id string) (Notebook, error)
	UpdateNotebookTitle(id, title string) error
	DeleteNotebook(id string) error

	// detail rows, created lazily on first save
	GetNotebookDetail(notebookID string) (NotebookDetail, error)
	InsertNotebookDetail(detail *NotebookDetail) error
	UpdateNotebookDetail(notebookID string, fields map[string]any) error

	// sharing
	ShareNotebook(notebookID, userID string) error
	CanAccess(userID, notebookID string) (bool, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a store instance based on the configured backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}
	return sqlDB.Close()
}

// CreateUser stores a new user record.
func (ds *DataStore) CreateUser(user *User) error {
	if err := ds.DB.Create(user).Error; err != nil {
		return wrapStoreError(err, "create-user", "email", user.Email)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (ds *DataStore) GetUser(id string) (User, error) {
	var user User
	if err := ds.DB.First(&user, "id = ?", id).Error; err != nil {
		return User{}, wrapStoreError(err, "get-user", "user_id", id)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address. Absence is reported
// with CategoryNotFound so the share endpoint can answer 404.
func (ds *DataStore) GetUserByEmail(email string) (User, error) {
	var user User
	if err := ds.DB.First(&user, "email = ?", email).Error; err != nil {
		return User{}, wrapStoreError(err, "get-user-by-email", "email", email)
	}
	return user, nil
}

// ListNotebooks returns the notebooks a user owns plus those shared with
// them, newest first.
func (ds *DataStore) ListNotebooks(userID string) ([]Notebook, error) {
	shared := ds.DB.Model(&NotebookShare{}).
		Select("notebook_id").
		Where("user_id = ?", userID)

	var notebooks []Notebook
	err := ds.DB.
		Where("user_id = ? OR id IN (?)", userID, shared).
		Order("created_at DESC").
		Find(&notebooks).Error
	if err != nil {
		return nil, wrapStoreError(err, "list-notebooks", "user_id", userID)
	}
	return notebooks, nil
}

// CreateNotebook inserts a new notebook owned by userID. An empty title
// falls back to the default in the model hook.
func (ds *DataStore) CreateNotebook(userID, title string) (Notebook, error) {
	notebook := Notebook{
		UserID: userID,
		Title:  title,
	}
	if err := ds.DB.Create(&notebook).Error; err != nil {
		return Notebook{}, wrapStoreError(err, "create-notebook", "user_id", userID)
	}
	return notebook, nil
}

// GetNotebook retrieves a notebook by ID.
func (ds *DataStore) GetNotebook(id string) (Notebook, error) {
	var notebook Notebook
	if err := ds.DB.First(&notebook, "id = ?", id).Error; err != nil {
		return Notebook{}, wrapStoreError(err, "get-notebook", "notebook_id", id)
	}
	return notebook, nil
}

// UpdateNotebookTitle renames a notebook.
func (ds *DataStore) UpdateNotebookTitle(id, title string) error {
	result := ds.DB.Model(&Notebook{}).Where("id = ?", id).Update("title", title)
	if result.Error != nil {
		return wrapStoreError(result.Error, "update-notebook-title", "notebook_id", id)
	}
	if result.RowsAffected == 0 {
		return errors.Newf("notebook %s not found", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("notebook_id", id).
			Build()
	}
	return nil
}

// DeleteNotebook removes a notebook with its detail row and share grants
// in a single transaction.
func (ds *DataStore) DeleteNotebook(id string) error {
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notebook_id = ?", id).Delete(&NotebookShare{}).Error; err != nil {
			return fmt.Errorf("deleting shares for notebook %s: %w", id, err)
		}
		if err := tx.Where("notebook_id = ?", id).Delete(&NotebookDetail{}).Error; err != nil {
			return fmt.Errorf("deleting detail for notebook %s: %w", id, err)
		}
		if err := tx.Delete(&Notebook{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting notebook %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return wrapStoreError(err, "delete-notebook", "notebook_id", id)
	}
	return nil
}

// GetNotebookDetail retrieves the detail row for a notebook. A missing row
// is an expected state for freshly created notebooks and is reported with
// CategoryNotFound, distinguished from real lookup failures.
func (ds *DataStore) GetNotebookDetail(notebookID string) (NotebookDetail, error) {
	var detail NotebookDetail
	if err := ds.DB.First(&detail, "notebook_id = ?", notebookID).Error; err != nil {
		return NotebookDetail{}, wrapStoreError(err, "get-notebook-detail", "notebook_id", notebookID)
	}
	return detail, nil
}

// InsertNotebookDetail creates the detail row. Losing a concurrent
// first-save race trips the unique index on notebook_id; the resulting
// error carries CategoryConflict so callers can retry as an update.
func (ds *DataStore) InsertNotebookDetail(detail *NotebookDetail) error {
	if err := ds.DB.Create(detail).Error; err != nil {
		return wrapStoreError(err, "insert-notebook-detail", "notebook_id", detail.NotebookID)
	}
	return nil
}

// UpdateNotebookDetail updates only the given fields on an existing row.
func (ds *DataStore) UpdateNotebookDetail(notebookID string, fields map[string]any) error {
	result := ds.DB.Model(&NotebookDetail{}).
		Where("notebook_id = ?", notebookID).
		Updates(fields)
	if result.Error != nil {
		return wrapStoreError(result.Error, "update-notebook-detail", "notebook_id", notebookID)
	}
	if result.RowsAffected == 0 {
		return errors.Newf("no detail row for notebook %s", notebookID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("notebook_id", notebookID).
			Build()
	}
	return nil
}

// ShareNotebook grants userID access to a notebook. Granting twice is
// reported as a conflict by the composite unique index.
func (ds *DataStore) ShareNotebook(notebookID, userID string) error {
	share := NotebookShare{
		NotebookID: notebookID,
		UserID:     userID,
	}
	if err := ds.DB.Create(&share).Error; err != nil {
		return wrapStoreError(err, "share-notebook", "notebook_id", notebookID)
	}
	return nil
}

// CanAccess reports whether userID owns the notebook or holds a share grant.
func (ds *DataStore) CanAccess(userID, notebookID string) (bool, error) {
	var count int64
	err := ds.DB.Model(&Notebook{}).
		Where("id = ? AND user_id = ?", notebookID, userID).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(err, "can-access", "notebook_id", notebookID)
	}
	if count > 0 {
		return true, nil
	}

	err = ds.DB.Model(&NotebookShare{}).
		Where("notebook_id = ? AND user_id = ?", notebookID, userID).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(err, "can-access", "notebook_id", notebookID)
	}
	return count > 0, nil
}
