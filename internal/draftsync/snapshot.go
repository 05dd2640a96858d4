package draftsync

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound reports that the server holds no draft for the owner.
	ErrNotFound = errors.New("draft not found")
	// ErrUnavailable reports a transient failure reaching the draft store.
	ErrUnavailable = errors.New("draft store unavailable")
)

// Snapshot is one observed state of the owner's draft.
type Snapshot struct {
	CurrentStep int             `json:"currentStep"`
	DraftData   json.RawMessage `json:"draftData"`
	Revision    int64           `json:"revision"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Empty reports whether the snapshot carries no form data.
func (s Snapshot) Empty() bool {
	return len(s.DraftData) == 0 && s.CurrentStep == 0
}

func (s Snapshot) clone() Snapshot {
	if s.DraftData != nil {
		s.DraftData = append(json.RawMessage(nil), s.DraftData...)
	}
	return s
}

// Source names where a loaded draft came from.
type Source string

const (
	SourceServer Source = "server"
	SourceLocal  Source = "local"
	SourceFresh  Source = "fresh"
)

// RemoteDraftStore is the server of record for drafts.
type RemoteDraftStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) (*Snapshot, error)
	Delete(ctx context.Context) error
}
