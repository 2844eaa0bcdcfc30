package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/usecase/assistant"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"
)

// CloseMissingClientID is the close code sent to a connection without client_id
const CloseMissingClientID = 4001

const failureReply = "Sorry, something went wrong while answering. Please try again."

// Hub serves dashboards over websockets: it answers database and chat requests and
// pushes transfers and notifications to every connected dashboard
type Hub struct {
	repo      repository.Repository
	responder assistant.Responder
	metrics   *Metrics

	upgrader websocket.Upgrader
	rps      rate.Limit
	burst    int

	clients *manager
	wg      sync.WaitGroup
}

// Option is a functional option for Hub
type Option func(*Hub)

// WithRateLimit limits inbound frames per client. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Hub) {
		if rps <= 0 {
			h.rps = rate.Inf
			return
		}
		h.rps = rate.Limit(rps)
		if burst > 0 {
			h.burst = burst
		}
	}
}

// WithMetrics records hub activity and serves it on /metrics
func WithMetrics(m *Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithCheckOrigin replaces the origin check of the websocket upgrade
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// New creates a Hub
func New(repo repository.Repository, responder assistant.Responder, opts ...Option) *Hub {
	h := &Hub{
		repo:      repo,
		responder: responder,
		rps:       rate.Limit(5),
		burst:     10,
		clients:   newManager(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handler returns the hub's HTTP routes: /ws and, with metrics, /metrics
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}
	return mux
}

// Connections returns the number of connected dashboards
func (h *Hub) Connections() int {
	return h.clients.count()
}

// ServeWS upgrades the request and serves one dashboard until it disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade websocket", "error", err, "remote", r.RemoteAddr)
		return
	}
	conn := adapter.NewWSConn(ws)

	id := model.ClientID(r.URL.Query().Get("client_id"))
	if id == "" {
		logger.Warn("reject connection without client_id", "remote", r.RemoteAddr)
		_ = conn.CloseWithCode(CloseMissingClientID, "client_id is required")
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()

	c := &client{
		id:      id,
		conn:    conn,
		limiter: rate.NewLimiter(h.rps, h.burst),
	}
	if prev := h.clients.connect(c); prev != nil {
		logger.Info("replace previous connection", "client_id", id)
		_ = prev.conn.Close()
	}
	h.metrics.connected(1)

	ctx := logging.With(r.Context(), logger.With("client_id", id))
	logging.From(ctx).Info("dashboard connected")

	defer func() {
		h.clients.disconnect(c)
		h.metrics.connected(-1)
		_ = conn.Close()
		logging.From(ctx).Info("dashboard disconnected")
	}()

	h.serve(ctx, c)
}

func (h *Hub) serve(ctx context.Context, c *client) {
	logger := logging.From(ctx)
	handler := &requestHandler{hub: h, client: c}

	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, adapter.ErrConnClosed) {
				logger.Warn("socket read failed", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			logger.Warn("drop frame over rate limit")
			h.metrics.drop("rate_limit")
			continue
		}

		req, err := model.DecodeRequest(data)
		switch {
		case errors.Is(err, model.ErrUnknownEvent):
			logger.Debug("ignore unknown request", "error", err)
			h.metrics.drop("unknown_event")
			continue
		case err != nil:
			logger.Warn("drop malformed request", "error", err)
			h.metrics.drop("malformed")
			continue
		}
		h.metrics.received(req.Kind())

		if err := model.DispatchRequest(ctx, req, handler); err != nil {
			logger.Error("failed to handle request", "event", req.Kind(), "error", err)
		}
	}
}

func (h *Hub) send(ctx context.Context, c *client, ev model.ServerEvent) error {
	data, err := model.EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := c.conn.WriteMessage(ctx, data); err != nil {
		return goerr.Wrap(err, "failed to send event", goerr.V("event", ev.Kind()), goerr.V("client_id", c.id))
	}
	h.metrics.sent(ev.Kind())
	return nil
}

// Broadcast sends ev to every connected dashboard. Failed sends are logged.
func (h *Hub) Broadcast(ctx context.Context, ev model.ServerEvent) {
	for _, c := range h.clients.all() {
		if err := h.send(ctx, c, ev); err != nil {
			logging.From(ctx).Warn("broadcast failed", "error", err)
		}
	}
}

// Publish pushes transfers and their notifications to every dashboard
func (h *Hub) Publish(ctx context.Context, assignments []*model.Assignment, notifications []*model.Notification) {
	if len(assignments) > 0 {
		h.Broadcast(ctx, model.AssignmentsEvent{Assignments: assignments})
		h.metrics.delivered(len(assignments))
	}
	for _, n := range notifications {
		h.Broadcast(ctx, model.NotificationEvent{Notification: n})
	}
}

// PublishDatabase pushes the current location database to every dashboard
func (h *Hub) PublishDatabase(ctx context.Context) error {
	db, err := h.repo.GetDatabase(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load database")
	}
	h.Broadcast(ctx, model.DBResponse{Database: db})
	return nil
}

// Shutdown closes every connection and waits for their handlers to return
func (h *Hub) Shutdown() {
	for _, c := range h.clients.all() {
		_ = c.conn.CloseWithCode(websocket.CloseGoingAway, "server shutting down")
	}
	h.wg.Wait()
}

// requestHandler answers one client's requests
type requestHandler struct {
	hub    *Hub
	client *client
}

func (x *requestHandler) OnGetDB(ctx context.Context) error {
	db, err := x.hub.repo.GetDatabase(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load database")
	}
	return x.hub.send(ctx, x.client, model.DBResponse{Database: db})
}

func (x *requestHandler) OnMessages(ctx context.Context, messages []*model.Message) error {
	if err := x.hub.send(ctx, x.client, model.MessageStart{}); err != nil {
		return err
	}

	outcome, err := x.hub.responder.Respond(ctx, messages, func(text string) error {
		return x.hub.send(ctx, x.client, model.MessageResponse{Text: text})
	})
	// committed transfers reach the other dashboards even when the requester is gone
	if outcome != nil {
		defer x.hub.Publish(context.WithoutCancel(ctx), outcome.Assignments, outcome.Notifications)
	}
	if err != nil {
		logging.From(ctx).Error("failed to answer", "error", err)
		if sendErr := x.hub.send(ctx, x.client, model.MessageResponse{Text: failureReply}); sendErr != nil {
			return sendErr
		}
	}

	return x.hub.send(ctx, x.client, model.MessageEnd{})
}
