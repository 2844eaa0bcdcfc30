package model

import (
	"time"

	"github.com/google/uuid"
)

type TranscriptID string

// NewTranscriptID generates a new unique TranscriptID
func NewTranscriptID() TranscriptID {
	return TranscriptID(uuid.New().String())
}

// Transcript is a saved dashboard conversation
type Transcript struct {
	ID            TranscriptID    `json:"id"`
	ClientID      ClientID        `json:"client_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Messages      []*Message      `json:"messages"`
	Notifications []*Notification `json:"notifications,omitempty"`
	Assignments   []*Assignment   `json:"assignments,omitempty"`
}

// Key returns the storage key of the transcript
func (t *Transcript) Key() string {
	return "transcripts/" + string(t.ID) + ".json"
}
