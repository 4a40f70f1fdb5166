package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultSessionTTL is the fixed window after which a session is
	// treated as absent regardless of activity.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultMaxMessages bounds the retained conversation window. The
	// oldest message is evicted when a new one would exceed it.
	DefaultMaxMessages = 3
)

// Session is ephemeral multi-turn state for one conversation.
type Session struct {
	ID           string
	Messages     []Message
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    time.Time
}

type sessionEntry struct {
	mu   sync.Mutex
	data Session
}

// SessionStore keeps conversation sessions in memory. Expiry is checked on
// every access; there is no background sweep. Appends to the same session id
// are serialized by a per-session lock, so concurrent requests for distinct
// sessions never contend beyond the map lookup.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionEntry
	ttl         time.Duration
	maxMessages int
	now         func() time.Time
}

// NewSessionStore creates a store with the given fixed-window TTL and
// message cap. Zero values fall back to the defaults.
func NewSessionStore(ttl time.Duration, maxMessages int) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &SessionStore{
		sessions:    make(map[string]*sessionEntry),
		ttl:         ttl,
		maxMessages: maxMessages,
		now:         time.Now,
	}
}

// Get returns a snapshot of the session, or ok=false if the id is unknown or
// the session has expired. Expired sessions are removed on the spot.
func (s *SessionStore) Get(id string) (Session, bool) {
	if id == "" {
		return Session{}, false
	}

	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if s.now().After(entry.data.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return Session{}, false
	}
	entry.data.LastAccessed = s.now()
	return snapshot(&entry.data), true
}

// GetOrCreate resolves the session for id, creating a fresh one when id is
// empty, unknown, or expired. The returned snapshot carries the id callers
// should use for subsequent turns.
func (s *SessionStore) GetOrCreate(id string) Session {
	if sess, ok := s.Get(id); ok {
		return sess
	}
	return s.create()
}

// Append adds a message to the session, evicting the oldest message first if
// the window is full. A missing or expired session is recreated under the
// same id with the appended message as its only content, so an id already
// handed to a caller stays valid across a mid-request expiry.
func (s *SessionStore) Append(id string, msg Message) Session {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.TokenCount == 0 {
		msg.TokenCount = estimateTokens(msg.Content)
	}

	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		entry.mu.Lock()
		if s.now().After(entry.data.ExpiresAt) {
			entry.mu.Unlock()
			s.mu.Lock()
			delete(s.sessions, id)
			s.mu.Unlock()
			ok = false
		} else {
			defer entry.mu.Unlock()
		}
	}
	if !ok {
		entry = s.resolve(id)
		entry.mu.Lock()
		defer entry.mu.Unlock()
	}

	if len(entry.data.Messages) >= s.maxMessages {
		drop := len(entry.data.Messages) - s.maxMessages + 1
		entry.data.Messages = append([]Message(nil), entry.data.Messages[drop:]...)
	}
	entry.data.Messages = append(entry.data.Messages, msg)
	entry.data.LastAccessed = s.now()
	return snapshot(&entry.data)
}

// Len reports the number of live sessions, pruning expired ones as it goes.
func (s *SessionStore) Len() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		if now.After(entry.data.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions)
}

func (s *SessionStore) create() Session {
	entry := s.resolve("")
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshot(&entry.data)
}

// resolve returns the live entry for id, creating a fresh session under the
// same id when none exists. An empty id gets a new one. Two racing callers
// for the same id land on the same entry.
func (s *SessionStore) resolve(id string) *sessionEntry {
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[id]; ok {
		return entry
	}
	entry := &sessionEntry{data: Session{
		ID:           id,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(s.ttl),
	}}
	s.sessions[id] = entry
	return entry
}

func snapshot(sess *Session) Session {
	out := *sess
	out.Messages = append([]Message(nil), sess.Messages...)
	return out
}
