package core

import "sync"

// Registry owns the live connections and the user -> connection binding.
// A user maps to at most one connection: the most recent one to register.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*Client // connID -> client
	users    map[string]string  // userID -> connID
	bindings map[string]string  // connID -> userID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[string]*Client),
		users:    make(map[string]string),
		bindings: make(map[string]string),
	}
}

// Add tracks a freshly accepted connection.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// Remove forgets a connection. Its user binding must already be gone (see Unregister).
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

// Get returns a tracked connection by ID.
func (r *Registry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// Register binds userID to connID, replacing any earlier binding for that user.
// The replaced connection is returned but not closed; it simply stops being the user's connection.
func (r *Registry) Register(connID, userID string) (previous string, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The connection was bound to someone else before: release that identity.
	if oldUser, ok := r.bindings[connID]; ok && oldUser != userID {
		if r.users[oldUser] == connID {
			delete(r.users, oldUser)
		}
	}

	if prev, ok := r.users[userID]; ok && prev != connID {
		delete(r.bindings, prev)
		previous, replaced = prev, true
	}

	r.users[userID] = connID
	r.bindings[connID] = userID
	return previous, replaced
}

// Unregister drops the binding held by connID, if any, and reports the user it belonged to.
func (r *Registry) Unregister(connID string) (userID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.bindings[connID]
	if !ok {
		return "", false
	}
	delete(r.bindings, connID)
	if r.users[userID] == connID {
		delete(r.users, userID)
	}
	return userID, true
}

// Lookup returns the connection currently bound to userID.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	c, ok := r.conns[connID]
	return c, ok
}

// UserOf returns the identity bound to connID.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.bindings[connID]
	return userID, ok
}

// Snapshot returns every live connection.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	return clients
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
