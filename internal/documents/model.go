package documents

import (
	"errors"
	"strings"
	"time"
)

// Status is the extraction state of a document.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusReady, StatusError:
		return true
	}
	return false
}

// Owner scopes every read and delete to one user. The zero value is not usable.
type Owner struct {
	id string
}

// ErrNoOwner is returned when an Owner is built from an empty user ID.
var ErrNoOwner = errors.New("owner id required")

// NewOwner returns the owner capability for userID.
func NewOwner(userID string) (Owner, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Owner{}, ErrNoOwner
	}
	return Owner{id: userID}, nil
}

// ID returns the owning user's ID.
func (o Owner) ID() string {
	return o.id
}

func (o Owner) valid() bool {
	return o.id != ""
}

// Document represents an uploaded PDF owned by a user.
type Document struct {
	ID            string
	OwnerID       string
	Name          string
	OriginalName  string
	StorageKey    string
	SizeBytes     int64
	MimeType      string
	Status        Status
	ExtractedText *string
	PageCount     *int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// ExtractionJob is the unit of work handed to a Dispatcher after upload.
type ExtractionJob struct {
	DocumentID string
	StorageKey string
	RequestID  string
}
