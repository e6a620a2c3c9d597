package server

import (
	"fmt"
	"net"
	"sync"
)

// Client represents one connected user. The handler goroutine owns the
// connection's lifecycle; the registry holds a non-owning reference for
// routing.
type Client struct {
	ID   uint64
	Conn *SafeConn

	mu       sync.RWMutex
	username string
}

// Username returns the registered username, or "" before the identity
// frame has been processed.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Client) setUsername(name string) {
	c.mu.Lock()
	c.username = name
	c.mu.Unlock()
}

// Registry is the thread-safe directory of online users. All
// operations hold the registry mutex only for table access; network
// sends always happen after the lock is released, on client handles
// copied out of the table, so a slow peer cannot stall the registry.
type Registry struct {
	mu      sync.Mutex
	clients []*Client // registration order
	nextID  uint64
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a connection with an empty username. The username is
// filled in by SetUsername once the client's identity frame arrives.
func (r *Registry) Register(conn net.Conn) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	client := &Client{
		ID:   r.nextID,
		Conn: NewSafeConn(conn),
	}
	r.clients = append(r.clients, client)
	return client
}

// SetUsername registers a username for a client. Fails if another
// online client already holds the name.
func (r *Registry) SetUsername(client *Client, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clients {
		if c != client && c.Username() == name {
			return fmt.Errorf("username %q is already connected", name)
		}
	}
	client.setUsername(name)
	return nil
}

// Remove deletes a client from the registry and reports the username
// it held plus how many clients remain online. Removing an unknown
// client is a no-op that reports the current count.
func (r *Registry) Remove(client *Client) (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.clients {
		if c == client {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return c.Username(), len(r.clients)
		}
	}
	return "", len(r.clients)
}

// IsOnline reports whether a user with the given name is connected
func (r *Registry) IsOnline(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Lookup returns the client handle for a username, if online
func (r *Registry) Lookup(name string) (*Client, bool) {
	if name == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clients {
		if c.Username() == name {
			return c, true
		}
	}
	return nil, false
}

// Usernames returns all registered usernames in registration order.
// Clients that have not yet sent their identity frame are skipped.
func (r *Registry) Usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.clients))
	for _, c := range r.clients {
		if name := c.Username(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// BroadcastTargets returns the clients a broadcast should reach: every
// named client except the excluded sender.
func (r *Registry) BroadcastTargets(exclude string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		name := c.Username()
		if name == "" || name == exclude {
			continue
		}
		targets = append(targets, c)
	}
	return targets
}

// All returns every registered client, named or not
func (r *Registry) All() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]*Client, len(r.clients))
	copy(clients, r.clients)
	return clients
}

// Count returns the number of connected clients
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
