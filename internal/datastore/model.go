// model.go this code defines the data model for the application
package datastore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultNotebookTitle is used when a notebook is created without a title.
const DefaultNotebookTitle = "Untitled Notebook"

// User represents a registered account.
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Email        string    `gorm:"uniqueIndex;not null"`
	FullName     string    // derived from the email local part at signup
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `gorm:"index"`
}

// BeforeCreate assigns a server-side identifier.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Notebook is a user-owned container with a title, holding one optional
// detail record. Listings sort descending by CreatedAt.
type Notebook struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Title     string    `gorm:"not null" json:"title"`
	CreatedAt time.Time `gorm:"index:idx_notebooks_created_at" json:"created_at"`
}

// BeforeCreate assigns a server-side identifier and the default title.
func (n *Notebook) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Title == "" {
		n.Title = DefaultNotebookTitle
	}
	return nil
}

// NotebookDetail is the lazily-created record holding a notebook's
// transcript and notes text. At most one row exists per notebook; the
// unique index backs the first-save insert race resolution.
type NotebookDetail struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	NotebookID string    `gorm:"size:36;uniqueIndex;not null" json:"notebook_id"`
	SpeechText string    `gorm:"type:text" json:"speech_text"`
	Notes      string    `gorm:"type:text" json:"notes"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NotebookShare grants a second user access to a notebook without
// transferring ownership.
type NotebookShare struct {
	ID         uint   `gorm:"primaryKey"`
	NotebookID string `gorm:"size:36;uniqueIndex:idx_shares_notebook_user;not null"`
	UserID     string `gorm:"size:36;uniqueIndex:idx_shares_notebook_user;index;not null"`
	CreatedAt  time.Time
}
