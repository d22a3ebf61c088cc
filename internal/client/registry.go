package client

import "fmt"

// Registry is the Client Registry named by spec.md §4.2: the
// scheduler's index from connection id to Client, populated by the
// carrier's open/close events and walked once per tick.
type Registry struct {
	clients map[uint64]*Client
	order   []uint64 // insertion order, for deterministic tick iteration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[uint64]*Client)}
}

// Insert adds c, keyed by c.ConnectionID. Re-inserting an id already
// present is an error — the carrier must close a connection id before
// reusing it.
func (r *Registry) Insert(c *Client) error {
	if _, exists := r.clients[c.ConnectionID]; exists {
		return fmt.Errorf("client: connection %d already registered", c.ConnectionID)
	}
	r.clients[c.ConnectionID] = c
	r.order = append(r.order, c.ConnectionID)
	return nil
}

// Remove drops the client for connectionID. Removing an id that isn't
// present is an error.
func (r *Registry) Remove(connectionID uint64) error {
	if _, exists := r.clients[connectionID]; !exists {
		return fmt.Errorf("client: connection %d not registered", connectionID)
	}
	delete(r.clients, connectionID)
	for i, id := range r.order {
		if id == connectionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Lookup returns the client for connectionID, if any.
func (r *Registry) Lookup(connectionID uint64) (*Client, bool) {
	c, ok := r.clients[connectionID]
	return c, ok
}

// Len returns the number of registered clients.
func (r *Registry) Len() int { return len(r.clients) }

// Each calls fn once per registered client, in registration order —
// the order the Scheduler's tick handler walks clients in.
func (r *Registry) Each(fn func(*Client)) {
	for _, id := range r.order {
		if c, ok := r.clients[id]; ok {
			fn(c)
		}
	}
}
