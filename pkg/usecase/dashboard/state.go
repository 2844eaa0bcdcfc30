package dashboard

import (
	"sync"

	"github.com/foodlink/foodlink/pkg/model"
)

// State holds the conversation, notification, assignment and location state of one
// dashboard session. All methods are safe for concurrent use; reads return copies.
type State struct {
	mu sync.RWMutex

	messages      []*model.Message
	notifications []*model.Notification
	assignments   []*model.Assignment
	db            *model.Database
	connected     bool

	mirrorNotifications bool
	updates             chan struct{}
}

// StateOption is a functional option for State
type StateOption func(*State)

// WithNotificationMirror also appends every notification to the conversation as a
// notification-role message
func WithNotificationMirror() StateOption {
	return func(s *State) {
		s.mirrorNotifications = true
	}
}

// NewState creates an empty State
func NewState(opts ...StateOption) *State {
	s := &State{
		db:      &model.Database{},
		updates: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Updates returns a channel that receives a value after state changes. Signals are
// coalesced: one pending value stands for any number of changes.
func (s *State) Updates() <-chan struct{} {
	return s.updates
}

func (s *State) changed() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// AppendUser appends a user message
func (s *State) AppendUser(text string) *model.Message {
	msg := &model.Message{Role: model.RoleUser, Content: text}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.changed()
	return msg.Clone()
}

// AppendAssistant appends a new assistant message
func (s *State) AppendAssistant(text string) {
	s.mu.Lock()
	s.messages = append(s.messages, &model.Message{Role: model.RoleAssistant, Content: text})
	s.mu.Unlock()

	s.changed()
}

// StreamAppend adds a streamed token. It extends the last message when that message
// is an assistant message and starts a new assistant message otherwise. The check
// runs on the live state under the lock, so consecutive tokens always coalesce.
func (s *State) StreamAppend(text string) {
	s.mu.Lock()
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == model.RoleAssistant {
		s.messages[n-1].Content += text
	} else {
		s.messages = append(s.messages, &model.Message{Role: model.RoleAssistant, Content: text})
	}
	s.mu.Unlock()

	s.changed()
}

// AppendNotification appends a delivery record
func (s *State) AppendNotification(n *model.Notification) {
	if n == nil {
		return
	}
	record := *n

	s.mu.Lock()
	s.notifications = append(s.notifications, &record)
	if s.mirrorNotifications {
		s.messages = append(s.messages, record.AsMessage())
	}
	s.mu.Unlock()

	s.changed()
}

// AppendAssignments appends transfer records in the given order
func (s *State) AppendAssignments(assignments []*model.Assignment) {
	s.mu.Lock()
	for _, a := range assignments {
		if a != nil {
			s.assignments = append(s.assignments, a.Clone())
		}
	}
	s.mu.Unlock()

	s.changed()
}

// ReplaceDatabase replaces the location state wholesale
func (s *State) ReplaceDatabase(db *model.Database) {
	s.mu.Lock()
	s.db = db.Clone()
	s.mu.Unlock()

	s.changed()
}

func (s *State) setConnected(connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	s.mu.Unlock()

	if changed {
		s.changed()
	}
}

// Connected reports whether the socket session is currently connected
func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Messages returns the conversation in insertion order
func (s *State) Messages() []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// History returns the messages sent to the assistant: user and assistant turns only
func (s *State) History() []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Role == model.RoleUser || m.Role == model.RoleAssistant {
			out = append(out, &model.Message{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

// Notifications returns the delivery records in arrival order
func (s *State) Notifications() []*model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Notification, len(s.notifications))
	for i, n := range s.notifications {
		c := *n
		out[i] = &c
	}
	return out
}

// Assignments returns the transfer records in arrival order
func (s *State) Assignments() []*model.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Assignment, len(s.assignments))
	for i, a := range s.assignments {
		out[i] = a.Clone()
	}
	return out
}

// Database returns the latest location database
func (s *State) Database() *model.Database {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.Clone()
}
