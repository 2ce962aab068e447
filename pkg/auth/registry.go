// Package auth maps connections to display names. There are no credentials:
// signing in is just binding a name to a connection, and the only durable
// fact is that a name has been seen before (used to filter mentions).
package auth

import (
	"errors"
	"regexp"
	"sync"
)

var ErrInvalidUsername = errors.New("invalid user name: must be letters, digits or underscore")

var usernameRegex = regexp.MustCompile(`^\w+$`)

// ValidateUsername reports whether name is a legal display name.
func ValidateUsername(name string) bool {
	return usernameRegex.MatchString(name)
}

// Registry tracks which display name each connection is signed in under.
// A clientID maps to at most one name at a time; a name may be signed in
// from several connections simultaneously.
type Registry struct {
	mu      sync.RWMutex
	names   map[string]string          // clientID -> display name
	clients map[string]map[string]bool // display name -> set of clientIDs
	known   map[string]bool            // every name that ever signed in
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names:   make(map[string]string),
		clients: make(map[string]map[string]bool),
		known:   make(map[string]bool),
	}
}

// SignIn binds name to clientID, overwriting any prior binding for that
// clientID. Only this clientID is removed from the old name's reverse set;
// other connections signed in under the old name are untouched.
func (r *Registry) SignIn(clientID, name string) error {
	if !ValidateUsername(name) {
		return ErrInvalidUsername
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.names[clientID]; ok && old != "" {
		r.removeClientLocked(old, clientID)
	}

	r.names[clientID] = name
	if r.clients[name] == nil {
		r.clients[name] = make(map[string]bool)
	}
	r.clients[name][clientID] = true
	r.known[name] = true

	return nil
}

// SignOut clears the binding for clientID. Idempotent: signing out a client
// that was never signed in is a no-op. The name stays known.
func (r *Registry) SignOut(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.names[clientID]
	if !ok {
		return
	}
	delete(r.names, clientID)
	if name != "" {
		r.removeClientLocked(name, clientID)
	}
}

// WhoAmI returns the display name bound to clientID, if any.
func (r *Registry) WhoAmI(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.names[clientID]
	return name, ok && name != ""
}

// IsKnownUser reports whether name has ever signed in. Sign-out does not
// forget a name: mentions of signed-out users still resolve.
func (r *Registry) IsKnownUser(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.known[name]
}

// ActiveConnections returns the clientIDs currently signed in under name.
func (r *Registry) ActiveConnections(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.clients[name]))
	for id := range r.clients[name] {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) removeClientLocked(name, clientID string) {
	set, ok := r.clients[name]
	if !ok {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(r.clients, name)
	}
}
