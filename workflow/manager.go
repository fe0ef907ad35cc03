package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var ErrSessionNotFound = errors.New("claiming session not found or expired")

// DefaultSessionTTL bounds how long an abandoned flow lingers before its
// transient state is discarded.
const DefaultSessionTTL = 30 * time.Minute

type session struct {
	flow      *Flow
	expiresAt time.Time
}

// Manager tracks open claiming flows by session ID. Sessions live only in
// memory: a flow that is never finished leaves no trace, which is exactly
// the cancellation semantics the flow promises.
type Manager struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{ttl: ttl, sessions: make(map[string]*session)}
}

// Add registers a flow and returns its session ID.
func (m *Manager) Add(flow *Flow) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := hex.EncodeToString(buf)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.sessions[id] = &session{flow: flow, expiresAt: time.Now().Add(m.ttl)}
	return id, nil
}

// Get returns the flow for a session, enforcing that only the user who
// started the flow may drive it. Each access renews the TTL.
func (m *Manager) Get(id, userID string) (*Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()

	s, ok := m.sessions[id]
	if !ok || s.flow.ActingUserID() != userID {
		return nil, ErrSessionNotFound
	}
	s.expiresAt = time.Now().Add(m.ttl)
	return s.flow, nil
}

// Remove drops a session, typically after Finish or Cancel.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) sweepLocked() {
	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.expiresAt) {
			delete(m.sessions, id)
		}
	}
}
