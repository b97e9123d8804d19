// Package registry tracks which chat sessions receive push notifications
package registry

import (
	"sync"
)

// RecipientRegistry is a process-lifetime set of chat IDs subscribed to push
// notifications. Membership is held in memory only, so the set starts empty
// after a restart.
type RecipientRegistry struct {
	mu      sync.RWMutex
	members map[int64]struct{}
}

// NewRecipientRegistry creates an empty registry
func NewRecipientRegistry() *RecipientRegistry {
	return &RecipientRegistry{
		members: make(map[int64]struct{}),
	}
}

// Activate adds a chat to the registry. Adding an existing member is a no-op.
func (r *RecipientRegistry) Activate(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[chatID] = struct{}{}
}

// Deactivate removes a chat from the registry
func (r *RecipientRegistry) Deactivate(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, chatID)
}

// Contains reports whether a chat is currently registered
func (r *RecipientRegistry) Contains(chatID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[chatID]
	return ok
}

// Snapshot returns the current members. The returned slice is a copy and is
// safe to iterate while the registry keeps changing.
func (r *RecipientRegistry) Snapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the current member count
func (r *RecipientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
