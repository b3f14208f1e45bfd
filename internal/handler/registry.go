package handler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/edspace/lectern/internal/tutor"
)

// Registry keys live sessions by id. Sessions are independent; the registry
// only guards its own map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*tutor.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*tutor.Session)}
}

// Add stores the session under a fresh id and returns it.
func (r *Registry) Add(s *tutor.Session) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return id
}

func (r *Registry) Get(id string) (*tutor.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
