// Package session keeps per-session conversation history in memory. History
// never outlives the process; the chat surfaces re-create sessions on demand.
package session

import (
	"sync"

	"careline/internal/model"
)

// DefaultMaxTurns matches the cap the chat surfaces rely on to bound LLM
// context size.
const DefaultMaxTurns = 10

// Store maps session ids to bounded, ordered turn histories. Appends for the
// same session serialize under a per-session lock; different sessions do not
// contend beyond the map lookup.
type Store struct {
	maxTurns int

	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	mu    sync.Mutex
	turns []model.ConversationTurn
}

// NewStore builds a store with the given per-session cap. A cap <= 0 falls
// back to DefaultMaxTurns.
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		maxTurns: maxTurns,
		sessions: make(map[string]*sessionState),
	}
}

func (s *Store) session(id string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		st = &sessionState{}
		s.sessions[id] = st
	}
	return st
}

// Append adds one turn to the session, creating it on first use. Once the cap
// is exceeded the oldest turn is evicted.
func (s *Store) Append(sessionID string, turn model.ConversationTurn) {
	st := s.session(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.turns = append(st.turns, turn)
	if len(st.turns) > s.maxTurns {
		st.turns = append([]model.ConversationTurn(nil), st.turns[len(st.turns)-s.maxTurns:]...)
	}
}

// History returns the session's turns in append order. The slice is a copy;
// callers may retain it across later appends.
func (s *Store) History(sessionID string) []model.ConversationTurn {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]model.ConversationTurn(nil), st.turns...)
}

// Clear removes all turns for the session. A later History returns empty.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
