package adapter

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrConnClosed = goerr.New("connection closed")
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultDialTimeout  = 15 * time.Second
)

// Conn is a message-oriented socket carrying JSON text frames
type Conn interface {
	// ReadMessage blocks until the next text frame arrives. It returns ErrConnClosed
	// when the peer or Close ended the connection.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text frame. It is safe for concurrent use.
	WriteMessage(ctx context.Context, data []byte) error
	// Close ends the connection. Calling it more than once is allowed.
	Close() error
}

// Dialer opens socket connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

// DialerOption is a functional option for the websocket dialer
type DialerOption func(*wsDialer)

// WithHeader adds a header sent with the opening handshake
func WithHeader(key, value string) DialerOption {
	return func(d *wsDialer) {
		d.header.Add(key, value)
	}
}

// NewDialer creates a websocket Dialer
func NewDialer(opts ...DialerOption) Dialer {
	d := &wsDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultDialTimeout,
		},
		header: http.Header{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		values := []goerr.Option{goerr.V("url", url)}
		if resp != nil {
			values = append(values, goerr.V("status", resp.StatusCode))
		}
		return nil, goerr.Wrap(err, "failed to dial websocket", values...)
	}
	return NewWSConn(conn), nil
}

// WSConn implements Conn over a gorilla websocket connection. It is used by both the
// dashboard dialer and the hub server.
type WSConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWSConn wraps an established websocket connection
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (c *WSConn) ReadMessage() ([]byte, error) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, goerr.Wrap(ErrConnClosed, "peer closed connection")
			}
			if ce, ok := err.(*websocket.CloseError); ok {
				return nil, goerr.Wrap(ErrConnClosed, "connection closed with code",
					goerr.V("code", ce.Code), goerr.V("reason", ce.Text))
			}
			return nil, goerr.Wrap(err, "failed to read websocket message")
		}
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *WSConn) WriteMessage(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return goerr.Wrap(err, "failed to set write deadline")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return goerr.Wrap(err, "failed to write websocket message")
	}
	return nil
}

func (c *WSConn) Close() error {
	return c.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode sends a close frame with the given code before closing the socket
func (c *WSConn) CloseWithCode(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		// The peer may already be gone; the close frame is best effort.
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()

		if err := c.conn.Close(); err != nil {
			c.closeErr = goerr.Wrap(err, "failed to close websocket")
		}
	})
	return c.closeErr
}
