// Package registry tracks connected users and registered AI workers for the
// orchestrator. Entries are owned exclusively by the registry; callers get
// copies, never live pointers.
package registry

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mother/pkg/chat"
)

// User is a connected human with an outbound connection handle.
type User struct {
	ID       string
	Nickname string
	Conn     chat.Conn
}

// Worker is a registered AI-model endpoint addressable by name.
type Worker struct {
	Name    string
	Address string
	Type    string
	VoiceID string
	Enabled bool
}

// Registry holds users keyed by id and workers keyed by name.
type Registry struct {
	mu      sync.RWMutex
	users   map[string]User
	workers map[string]Worker
}

func New() *Registry {
	return &Registry{
		users:   map[string]User{},
		workers: map[string]Worker{},
	}
}

// RegisterUser stores a user, silently replacing an existing entry with the
// same id (reconnect case).
func (r *Registry) RegisterUser(u User) {
	if r == nil || u.ID == "" {
		return
	}
	r.mu.Lock()
	r.users[u.ID] = u
	r.mu.Unlock()
	log.Debug().Str("component", "registry").Str("user_id", u.ID).Str("nickname", u.Nickname).Msg("user registered")
}

// UnregisterUser removes a user. Absent ids are a no-op.
func (r *Registry) UnregisterUser(id string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.users, id)
	r.mu.Unlock()
	log.Debug().Str("component", "registry").Str("user_id", id).Msg("user unregistered")
}

// User returns the user for an id.
func (r *Registry) User(id string) (User, bool) {
	if r == nil {
		return User{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// UserCount reports the number of connected users.
func (r *Registry) UserCount() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// RegisterWorker stores a worker keyed by name with replace semantics: a
// re-registration overwrites the previous entry entirely, preserving nothing.
func (r *Registry) RegisterWorker(w Worker) {
	if r == nil || w.Name == "" {
		return
	}
	r.mu.Lock()
	r.workers[w.Name] = w
	r.mu.Unlock()
	log.Debug().Str("component", "registry").Str("worker", w.Name).Str("address", w.Address).Msg("worker registered")
}

// RemoveWorker deletes a worker. Removal is always explicit; nothing in the
// registry removes workers implicitly.
func (r *Registry) RemoveWorker(name string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.workers, name)
	r.mu.Unlock()
}

// SetWorkerVoice assigns a voice profile to a worker. Returns false if the
// worker is unknown.
func (r *Registry) SetWorkerVoice(name, voiceID string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[name]
	if !ok {
		return false
	}
	w.VoiceID = voiceID
	r.workers[name] = w
	return true
}

// IsActive reports whether a worker is registered and enabled.
func (r *Registry) IsActive(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	return ok && w.Enabled
}

// Worker returns the worker for a name.
func (r *Registry) Worker(name string) (Worker, bool) {
	if r == nil {
		return Worker{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[name]
	return w, ok
}

// ActiveWorkers returns all enabled workers.
func (r *Registry) ActiveWorkers() []Worker {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Worker, 0, len(r.workers))
	for _, w := range r.workers {
		if w.Enabled {
			out = append(out, w)
		}
	}
	return out
}
