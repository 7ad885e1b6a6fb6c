// Package session provides the in-memory conversation session store.
//
// One entry exists per active identity; nothing is persisted, so a process
// restart drops all in-flight, uncommitted dialogues. A per-session mutex
// serializes message handling for one identity while distinct identities
// proceed fully in parallel.
package session

import (
	"log/slog"
	"sync"

	"github.com/BTreeMap/IntakeRelay/internal/models"
)

// Session holds the dialogue position and accumulated field values for one
// conversing identity. An idle session with no fields is equivalent to no
// session at all.
type Session struct {
	ID     string
	State  models.StateType
	Fields map[models.FieldKey]string
}

// Clear discards all collected fields and returns the session to idle.
func (s *Session) Clear() {
	s.State = models.StateIdle
	s.Fields = make(map[models.FieldKey]string)
}

type entry struct {
	mu   sync.Mutex // serializes handling of one session's messages
	sess Session
}

// Store is a process-wide map from session identity to conversation state.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// get returns the entry for id, creating a default idle session on first use.
func (s *Store) get(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[id]; ok {
		return e
	}
	e = &entry{sess: Session{ID: id, Fields: make(map[models.FieldKey]string)}}
	s.entries[id] = e
	slog.Debug("session.Store: created session", "id", id)
	return e
}

// Do runs fn with exclusive access to the session for id, creating a
// default idle session if none exists. Mutations made by fn are retained.
// Calls for the same id are serialized; calls for different ids run
// concurrently.
func (s *Store) Do(id string, fn func(sess *Session)) {
	e := s.get(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.sess)
}

// Snapshot returns a copy of the session for id and whether one exists.
// The returned Fields map is a copy; mutating it does not affect the store.
func (s *Store) Snapshot(id string) (Session, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	copied := Session{ID: e.sess.ID, State: e.sess.State, Fields: make(map[models.FieldKey]string, len(e.sess.Fields))}
	for k, v := range e.sess.Fields {
		copied.Fields[k] = v
	}
	return copied, true
}

// Delete removes the session for id, discarding any collected fields.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	slog.Debug("session.Store: deleted session", "id", id)
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
