// Package agent implements the agent session store and router (C7): a
// per-user requirement-elicitation state machine multiplexing inbound
// private messages into LLM-mediated sessions.
package agent

import (
	"fmt"
	"sync"
	"time"

	"wardkeeper/pkg/llm"
	"wardkeeper/pkg/utils"
)

// AgentSession is the per-user requirement-elicitation state, created by
// an explicit open-command and destroyed on successful dispatch or
// explicit close. It is in-memory only — a process restart clears every
// live session, which is acceptable because nothing here is meant to
// survive one.
type AgentSession struct {
	SessionID string
	Turns     []llm.ChatMessage
	CreatedAt time.Time
}

// maxTurns bounds how much history is submitted to the LLM per 4.7 step 1.
const maxTurns = 15

// AppendTurn appends msg, keeping only the most recent maxTurns entries.
func (s *AgentSession) AppendTurn(msg llm.ChatMessage) {
	s.Turns = append(s.Turns, msg)
	if len(s.Turns) > maxTurns {
		s.Turns = s.Turns[len(s.Turns)-maxTurns:]
	}
}

// SessionStore owns the session map keyed by "<bot-self-id>:<event-session-id>",
// guarded by a single mutex. There is no background sweep: sessions live
// until popped explicitly.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*AgentSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*AgentSession)}
}

// Key builds the store's session key from the bot's own id and the
// originating event's session id (e.g. the peer user id for a private chat).
func Key(botSelfID, eventSessionID int64) string {
	return fmt.Sprintf("%d:%d", botSelfID, eventSessionID)
}

func (s *SessionStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[key]
	return ok
}

func (s *SessionStore) Get(key string) (*AgentSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

// Create opens a fresh session at key, overwriting any existing one.
func (s *SessionStore) Create(key string) *AgentSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &AgentSession{SessionID: utils.GenerateID(), CreatedAt: time.Now()}
	s.sessions[key] = sess
	return sess
}

// Pop removes and returns the session at key, if any.
func (s *SessionStore) Pop(key string) (*AgentSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if ok {
		delete(s.sessions, key)
	}
	return sess, ok
}
