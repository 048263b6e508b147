// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package session

import (
	"sync"
	"time"
)

// Registry is the process-wide map from session ID to Session record,
// guarded by a single coarse lock, acceptable given create/close
// frequency. It keeps no separate last-activity index or cleanup set:
// last activity lives on each Session (read by Idle), and each Session's
// BeginTeardown marks a teardown in progress.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Put registers s under its ID. If a record already exists for that ID,
// it is marked inactive before being replaced — any task still holding
// the old *Session observes IsActive() == false at its next suspension
// point and exits cleanly.
func (r *Registry) Put(s *Session) (previous *Session) {
	r.mu.Lock()
	previous = r.sessions[s.ID]
	r.sessions[s.ID] = s
	r.mu.Unlock()

	if previous != nil {
		previous.Deactivate()
	}
	return previous
}

// Get returns the session for id, if present.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes id from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Idle returns sessions whose last activity is older than threshold.
func (r *Registry) Idle(threshold time.Duration) []*Session {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	var idle []*Session
	for _, s := range r.sessions {
		if now.Sub(s.LastActivity()) > threshold {
			idle = append(idle, s)
		}
	}
	return idle
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
