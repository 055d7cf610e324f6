package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory. Sessions are lost on
// restart and are not shared between replicas.
type MemoryStore struct {
	clock clock.Clock
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	values    Values
	expiresAt time.Time
}

// NewMemoryStore returns a store whose sessions expire ttl after their
// last Bind. A nil clk means the wall clock.
func NewMemoryStore(ttl time.Duration, clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{clock: clk, ttl: ttl, sessions: map[string]memorySession{}}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Values, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(id)
	return sess.values, ok, nil
}

func (s *MemoryStore) Bind(_ context.Context, id string, v Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.lookup(id); ok && sess.values.TenantID != v.TenantID {
		return errs.Conflict("session.Bind", "session is bound to another tenant")
	}
	s.sessions[id] = memorySession{values: v, expiresAt: s.clock.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// lookup must be called with mu held. Expired sessions are dropped.
func (s *MemoryStore) lookup(id string) (memorySession, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return memorySession{}, false
	}
	if s.ttl > 0 && !s.clock.Now().Before(sess.expiresAt) {
		delete(s.sessions, id)
		return memorySession{}, false
	}
	return sess, true
}
