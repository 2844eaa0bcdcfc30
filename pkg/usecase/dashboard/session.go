package dashboard

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrNotConnected  = goerr.New("socket session is not connected")
	ErrSessionClosed = goerr.New("socket session is closed")
	ErrEmptyMessage  = goerr.New("message is empty")
)

// Session owns the socket connection of one dashboard. Everything that sends goes
// through the Session handle; Close releases the connection and its goroutines.
type Session struct {
	dialer   adapter.Dialer
	endpoint string
	clientID model.ClientID
	state    *State

	reconnect *backoff

	mu     sync.Mutex
	conn   adapter.Conn
	opened bool
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewInput contains parameters for creating a new socket session
type NewInput struct {
	Dialer   adapter.Dialer
	URL      string
	ClientID model.ClientID
	State    *State
}

// Option is a functional option for Session
type Option func(*Session)

// WithReconnect makes the session redial after losing the connection, waiting
// initial, 2*initial, ... up to max between attempts
func WithReconnect(initial, max time.Duration) Option {
	return func(s *Session) {
		if initial > 0 {
			s.reconnect = &backoff{initial: initial, max: max}
		}
	}
}

// New creates a session. The connection is opened by Open.
func New(input NewInput, opts ...Option) (*Session, error) {
	if input.Dialer == nil {
		return nil, goerr.New("dialer is required")
	}
	if input.ClientID == "" {
		return nil, goerr.New("client id is required")
	}

	endpoint, err := buildEndpoint(input.URL, input.ClientID)
	if err != nil {
		return nil, err
	}

	state := input.State
	if state == nil {
		state = NewState()
	}

	s := &Session{
		dialer:   input.Dialer,
		endpoint: endpoint,
		clientID: input.ClientID,
		state:    state,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func buildEndpoint(raw string, clientID model.ClientID) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", goerr.Wrap(err, "invalid socket url", goerr.V("url", raw))
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", goerr.New("unsupported socket url scheme", goerr.V("url", raw))
	}

	q := u.Query()
	q.Set("client_id", clientID.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// State returns the state fed by this session
func (s *Session) State() *State { return s.state }

// ClientID returns the identifier sent to the server
func (s *Session) ClientID() model.ClientID { return s.clientID }

// Open dials the server, requests the initial snapshot and starts dispatching inbound
// events. The session stops when ctx is cancelled or Close is called.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.opened {
		s.mu.Unlock()
		return goerr.New("socket session is already open")
	}
	s.opened = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	conn, err := s.dialer.Dial(loopCtx, s.endpoint)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSessionClosed
	}
	if err != nil {
		s.opened = false
		s.cancel = nil
		s.mu.Unlock()
		cancel()
		return goerr.Wrap(err, "failed to open socket session", goerr.V("client_id", s.clientID))
	}
	// both goroutines are counted before Close can see the session as open
	s.wg.Add(2)
	s.mu.Unlock()

	s.attach(loopCtx, conn)

	go s.closeOnDone(loopCtx)
	go s.run(loopCtx, conn)
	return nil
}

// attach installs conn as the live connection and requests a database snapshot
func (s *Session) attach(ctx context.Context, conn adapter.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.state.setConnected(true)

	logging.From(ctx).Info("socket session connected", "client_id", s.clientID)
	if err := s.requestDatabase(ctx); err != nil {
		logging.From(ctx).Warn("failed to request database", "error", err)
	}
}

func (s *Session) closeOnDone(ctx context.Context) {
	defer s.wg.Done()
	<-ctx.Done()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			logging.From(ctx).Debug("failed to close socket", "error", err)
		}
	}
}

func (s *Session) run(ctx context.Context, conn adapter.Conn) {
	defer s.wg.Done()
	logger := logging.From(ctx)

	for {
		err := s.readLoop(ctx, conn)
		s.detach(conn)

		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, adapter.ErrConnClosed) {
			logger.Info("socket session closed by server", "client_id", s.clientID)
		} else {
			logger.Error("socket connection error", "error", err, "client_id", s.clientID)
		}

		if s.reconnect == nil {
			return
		}
		conn = s.redial(ctx)
		if conn == nil {
			return
		}
		s.attach(ctx, conn)
	}
}

func (s *Session) detach(conn adapter.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	// The connection may already be closed by closeOnDone; a second Close is a no-op.
	_ = conn.Close()
	s.state.setConnected(false)
}

func (s *Session) redial(ctx context.Context) adapter.Conn {
	logger := logging.From(ctx)
	s.reconnect.reset()

	for {
		wait := s.reconnect.next()
		logger.Info("reconnecting socket session", "after", wait.String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := s.dialer.Dial(ctx, s.endpoint)
		if err == nil {
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("failed to reconnect socket session", "error", err)
	}
}

func (s *Session) readLoop(ctx context.Context, conn adapter.Conn) error {
	logger := logging.From(ctx)
	h := &eventHandler{session: s}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := model.DecodeEvent(data)
		switch {
		case errors.Is(err, model.ErrUnknownEvent):
			logger.Debug("ignore unknown event", "error", err)
			continue
		case err != nil:
			logger.Warn("drop malformed frame", "error", err, "size", len(data))
			continue
		}

		if err := model.DispatchEvent(ctx, ev, h); err != nil {
			logger.Warn("failed to handle event", "event", ev.Kind(), "error", err)
		}
	}
}

// Send appends a user message and sends the conversation history to the server
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	s.state.AppendUser(text)
	return s.write(ctx, model.SendMessages{Messages: s.state.History()})
}

func (s *Session) requestDatabase(ctx context.Context) error {
	return s.write(ctx, model.GetDB{})
}

func (s *Session) write(ctx context.Context, req model.ClientRequest) error {
	data, err := model.EncodeRequest(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}
	if conn == nil {
		return goerr.Wrap(ErrNotConnected, "cannot send request", goerr.V("event", req.Kind()))
	}
	if err := conn.WriteMessage(ctx, data); err != nil {
		return goerr.Wrap(err, "failed to send request", goerr.V("event", req.Kind()))
	}
	return nil
}

// Close tears the session down. It is safe to call at any time, more than once, and
// before Open.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.state.setConnected(false)
	return nil
}

// eventHandler applies server events to the session state
type eventHandler struct {
	session *Session
}

func (h *eventHandler) OnMessageStart(ctx context.Context) error {
	h.session.state.AppendAssistant("")
	return nil
}

func (h *eventHandler) OnMessageResponse(ctx context.Context, text string) error {
	h.session.state.StreamAppend(text)
	return nil
}

func (h *eventHandler) OnMessageEnd(ctx context.Context) error {
	return nil
}

func (h *eventHandler) OnNotification(ctx context.Context, n *model.Notification) error {
	h.session.state.AppendNotification(n)
	return nil
}

func (h *eventHandler) OnDBResponse(ctx context.Context, db *model.Database) error {
	h.session.state.ReplaceDatabase(db)
	return nil
}

func (h *eventHandler) OnAssignments(ctx context.Context, assignments []*model.Assignment) error {
	h.session.state.AppendAssignments(assignments)
	return h.session.requestDatabase(ctx)
}

// backoff doubles the wait between reconnect attempts up to max
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func (b *backoff) reset() { b.current = 0 }

func (b *backoff) next() time.Duration {
	switch {
	case b.current == 0:
		b.current = b.initial
	case b.max > 0 && b.current*2 > b.max:
		b.current = b.max
	default:
		b.current *= 2
	}
	return b.current
}
