package hub

import (
	"sync"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"golang.org/x/time/rate"
)

// client is one connected dashboard
type client struct {
	id      model.ClientID
	conn    *adapter.WSConn
	limiter *rate.Limiter
}

// manager tracks connected clients by id. A client that reconnects with the same id
// replaces its previous connection.
type manager struct {
	mu      sync.RWMutex
	clients map[model.ClientID]*client
}

func newManager() *manager {
	return &manager{clients: make(map[model.ClientID]*client)}
}

// connect registers c and returns the client it replaced, if any
func (m *manager) connect(c *client) *client {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.clients[c.id]
	m.clients[c.id] = c
	return prev
}

// disconnect removes c unless it was already replaced
func (m *manager) disconnect(c *client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clients[c.id] == c {
		delete(m.clients, c.id)
	}
}

func (m *manager) all() []*client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out
}

func (m *manager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
