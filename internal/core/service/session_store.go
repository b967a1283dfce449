package service

import "sync"

// Step tags the current position of one user's conversation flow.
type Step string

const (
	StepIdle             Step = ""
	StepUsername         Step = "awaiting_username"
	StepConfirmOverwrite Step = "confirm_overwrite"
	StepAttack           Step = "awaiting_attack"
	StepDefense          Step = "awaiting_defense"
)

// FlowKind distinguishes the add-account flow from the edit flow (which skips
// username collection).
type FlowKind string

const (
	FlowAdd  FlowKind = "add"
	FlowEdit FlowKind = "edit"
)

// Session is one user's scratch state: conversation step, partially collected
// field values, and the pagination cursor for list views. Ephemeral,
// process-lifetime only, never persisted.
type Session struct {
	Step     Step
	Flow     FlowKind
	Username string
	Attack   int64
	Page     int
}

// SessionStore maps user IDs to their scratch state. Inputs for a single user
// arrive in order, but different users' updates may race, hence the lock.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*Session)}
}

// Get returns a copy of the user's session; a zero Session (StepIdle) when
// none is active.
func (st *SessionStore) Get(userID int64) Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s, ok := st.sessions[userID]; ok {
		return *s
	}
	return Session{}
}

// Set replaces the user's session.
func (st *SessionStore) Set(userID int64, s Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[userID] = &s
}

// Update applies fn to the user's session, creating it when absent.
func (st *SessionStore) Update(userID int64, fn func(*Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[userID]
	if !ok {
		s = &Session{}
		st.sessions[userID] = s
	}
	fn(s)
}

// Clear discards the user's session.
func (st *SessionStore) Clear(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
}
