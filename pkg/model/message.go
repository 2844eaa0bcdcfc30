package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidRole = goerr.New("invalid message role")
)

type Role string

const (
	RoleUser         Role = "user"
	RoleAssistant    Role = "assistant"
	RoleNotification Role = "notification"
)

// Validate checks if the role is one of the known roles
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant, RoleNotification:
		return nil
	default:
		return goerr.Wrap(ErrInvalidRole, "unknown role", goerr.V("role", r))
	}
}

// Message is a single entry of the conversation shown in the chat pane
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Recipient string     `json:"recipient,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Clone returns a copy of the message that shares no memory with the receiver
func (m *Message) Clone() *Message {
	c := *m
	if m.Timestamp != nil {
		ts := *m.Timestamp
		c.Timestamp = &ts
	}
	return &c
}

type ClientID string

// NewClientID generates a new unique ClientID
func NewClientID() ClientID {
	return ClientID(uuid.New().String())
}

func (x ClientID) String() string { return string(x) }
