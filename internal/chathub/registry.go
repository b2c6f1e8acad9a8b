package chathub

import "sync"

// ConnectionRegistry maps a user id to its single live connection id and
// back. Last connect wins: a newer connection for the same user silently
// replaces the old mapping. The two maps stay mutual inverses for every
// entry that is present in both.
type ConnectionRegistry struct {
	mu        sync.RWMutex
	userConns map[string]string // userID -> connID
	connUsers map[string]string // connID -> userID
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		userConns: make(map[string]string),
		connUsers: make(map[string]string),
	}
}

// Register records userID <-> connID, unconditionally overwriting any prior
// mapping for either side. It never fails.
func (r *ConnectionRegistry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.userConns[userID]; ok {
		delete(r.connUsers, old)
	}
	if oldUser, ok := r.connUsers[connID]; ok {
		delete(r.userConns, oldUser)
	}
	r.userConns[userID] = connID
	r.connUsers[connID] = userID
}

// Lookup returns the live connection id for userID, if any.
func (r *ConnectionRegistry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.userConns[userID]
	return connID, ok
}

// LookupUser returns the user behind connID, if any.
func (r *ConnectionRegistry) LookupUser(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.connUsers[connID]
	return userID, ok
}

// Unregister removes both directions for connID. Calling it with an unknown
// or already-removed id is a no-op, so disconnect teardown is idempotent.
// It returns the user that was mapped, when there was one.
func (r *ConnectionRegistry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.connUsers[connID]
	if !ok {
		return "", false
	}
	delete(r.connUsers, connID)
	// Only drop the forward entry if it still points at this connection; a
	// newer register for the same user must not be clobbered.
	if current, exists := r.userConns[userID]; exists && current == connID {
		delete(r.userConns, userID)
	}
	return userID, true
}

// Len reports the number of registered users.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns)
}
