package model

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrUnknownEvent   = goerr.New("unknown event")
	ErrMalformedFrame = goerr.New("malformed frame")
)

type EventKind string

const (
	// client -> server
	EventGetDB   EventKind = "get_db"
	EventMessage EventKind = "message"

	// server -> client
	EventMessageStart    EventKind = "message_start"
	EventMessageResponse EventKind = "message_response"
	EventMessageEnd      EventKind = "message_end"
	EventNotification    EventKind = "notification"
	EventDBResponse      EventKind = "db_response"
	EventAssignments     EventKind = "assignments"
)

type envelope struct {
	Event    EventKind       `json:"event"`
	Data     json.RawMessage `json:"data,omitempty"`
	Messages []*Message      `json:"messages,omitempty"`
}

func newEnvelope(kind EventKind, data any) (*envelope, error) {
	env := &envelope{Event: kind}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode event data", goerr.V("event", kind))
		}
		env.Data = raw
	}
	return env, nil
}

func (e *envelope) decodeData(dst any) error {
	if len(e.Data) == 0 {
		return goerr.Wrap(ErrMalformedFrame, "event has no data", goerr.V("event", e.Event))
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return goerr.Wrap(ErrMalformedFrame, "failed to decode event data",
			goerr.V("event", e.Event), goerr.V("cause", err.Error()))
	}
	return nil
}

func readEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, goerr.Wrap(ErrMalformedFrame, "failed to decode frame", goerr.V("cause", err.Error()))
	}
	if env.Event == "" {
		return nil, goerr.Wrap(ErrMalformedFrame, "frame has no event tag")
	}
	return &env, nil
}

// EventHandler receives server events. It has one method per event kind, so a handler
// that does not cover every kind does not compile.
type EventHandler interface {
	OnMessageStart(ctx context.Context) error
	OnMessageResponse(ctx context.Context, text string) error
	OnMessageEnd(ctx context.Context) error
	OnNotification(ctx context.Context, n *Notification) error
	OnDBResponse(ctx context.Context, db *Database) error
	OnAssignments(ctx context.Context, assignments []*Assignment) error
}

// ServerEvent is a frame sent from the server to a dashboard
type ServerEvent interface {
	Kind() EventKind
	envelope() (*envelope, error)
	dispatch(ctx context.Context, h EventHandler) error
}

type MessageStart struct{}

func (MessageStart) Kind() EventKind              { return EventMessageStart }
func (MessageStart) envelope() (*envelope, error) { return newEnvelope(EventMessageStart, nil) }
func (MessageStart) dispatch(ctx context.Context, h EventHandler) error {
	return h.OnMessageStart(ctx)
}

type MessageResponse struct {
	Text string
}

func (MessageResponse) Kind() EventKind { return EventMessageResponse }
func (x MessageResponse) envelope() (*envelope, error) {
	return newEnvelope(EventMessageResponse, x.Text)
}
func (x MessageResponse) dispatch(ctx context.Context, h EventHandler) error {
	return h.OnMessageResponse(ctx, x.Text)
}

type MessageEnd struct{}

func (MessageEnd) Kind() EventKind              { return EventMessageEnd }
func (MessageEnd) envelope() (*envelope, error) { return newEnvelope(EventMessageEnd, nil) }
func (MessageEnd) dispatch(ctx context.Context, h EventHandler) error {
	return h.OnMessageEnd(ctx)
}

type NotificationEvent struct {
	Notification *Notification
}

func (NotificationEvent) Kind() EventKind { return EventNotification }
func (x NotificationEvent) envelope() (*envelope, error) {
	return newEnvelope(EventNotification, x.Notification)
}
func (x NotificationEvent) dispatch(ctx context.Context, h EventHandler) error {
	return h.OnNotification(ctx, x.Notification)
}

type DBResponse struct {
	Database *Database
}

func (DBResponse) Kind() EventKind { return EventDBResponse }
func (x DBResponse) envelope() (*envelope, error) {
	return newEnvelope(EventDBResponse, x.Database)
}
func (x DBResponse) dispatch(ctx context.Context, h EventHandler) error {
	return h.OnDBResponse(ctx, x.Database)
}

type AssignmentsEvent struct {
	Assignments []*Assignment
}

func (AssignmentsEvent) Kind() EventKind { return EventAssignments }
func (x AssignmentsEvent) envelope() (*envelope, error) {
	items := x.Assignments
	if items == nil {
		items = []*Assignment{}
	}
	return newEnvelope(EventAssignments, items)
}
func (x AssignmentsEvent) dispatch(ctx context.Context, h EventHandler) error {
	return h.OnAssignments(ctx, x.Assignments)
}

// DispatchEvent calls the handler method matching the event kind
func DispatchEvent(ctx context.Context, ev ServerEvent, h EventHandler) error {
	return ev.dispatch(ctx, h)
}

// EncodeEvent encodes a server event into a JSON text frame
func EncodeEvent(ev ServerEvent) ([]byte, error) {
	env, err := ev.envelope()
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeEvent decodes a JSON text frame sent by the server. Unknown tags return
// ErrUnknownEvent; broken frames return ErrMalformedFrame.
func DecodeEvent(data []byte) (ServerEvent, error) {
	env, err := readEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Event {
	case EventMessageStart:
		return MessageStart{}, nil

	case EventMessageResponse:
		var text string
		if err := env.decodeData(&text); err != nil {
			return nil, err
		}
		return MessageResponse{Text: text}, nil

	case EventMessageEnd:
		return MessageEnd{}, nil

	case EventNotification:
		var n Notification
		if err := env.decodeData(&n); err != nil {
			return nil, err
		}
		return NotificationEvent{Notification: &n}, nil

	case EventDBResponse:
		var db Database
		if err := env.decodeData(&db); err != nil {
			return nil, err
		}
		return DBResponse{Database: &db}, nil

	case EventAssignments:
		var assignments []*Assignment
		if err := env.decodeData(&assignments); err != nil {
			return nil, err
		}
		return AssignmentsEvent{Assignments: assignments}, nil

	default:
		return nil, goerr.Wrap(ErrUnknownEvent, "unsupported server event", goerr.V("event", env.Event))
	}
}

// RequestHandler receives dashboard requests, one method per request kind
type RequestHandler interface {
	OnGetDB(ctx context.Context) error
	OnMessages(ctx context.Context, messages []*Message) error
}

// ClientRequest is a frame sent from a dashboard to the server
type ClientRequest interface {
	Kind() EventKind
	envelope() (*envelope, error)
	dispatch(ctx context.Context, h RequestHandler) error
}

type GetDB struct{}

func (GetDB) Kind() EventKind              { return EventGetDB }
func (GetDB) envelope() (*envelope, error) { return newEnvelope(EventGetDB, nil) }
func (GetDB) dispatch(ctx context.Context, h RequestHandler) error {
	return h.OnGetDB(ctx)
}

type SendMessages struct {
	Messages []*Message
}

func (SendMessages) Kind() EventKind { return EventMessage }
func (x SendMessages) envelope() (*envelope, error) {
	msgs := x.Messages
	if msgs == nil {
		msgs = []*Message{}
	}
	return &envelope{Event: EventMessage, Messages: msgs}, nil
}
func (x SendMessages) dispatch(ctx context.Context, h RequestHandler) error {
	return h.OnMessages(ctx, x.Messages)
}

// DispatchRequest calls the handler method matching the request kind
func DispatchRequest(ctx context.Context, req ClientRequest, h RequestHandler) error {
	return req.dispatch(ctx, h)
}

// EncodeRequest encodes a dashboard request into a JSON text frame
func EncodeRequest(req ClientRequest) ([]byte, error) {
	env, err := req.envelope()
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeRequest decodes a JSON text frame sent by a dashboard
func DecodeRequest(data []byte) (ClientRequest, error) {
	env, err := readEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Event {
	case EventGetDB:
		return GetDB{}, nil

	case EventMessage:
		for i, m := range env.Messages {
			if m == nil {
				return nil, goerr.Wrap(ErrMalformedFrame, "null message in history", goerr.V("index", i))
			}
			if err := m.Role.Validate(); err != nil {
				return nil, goerr.Wrap(ErrMalformedFrame, "invalid message in history",
					goerr.V("index", i), goerr.V("role", m.Role))
			}
		}
		return SendMessages{Messages: env.Messages}, nil

	default:
		return nil, goerr.Wrap(ErrUnknownEvent, "unsupported request", goerr.V("event", env.Event))
	}
}
