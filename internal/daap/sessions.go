package daap

import (
	"sync"
	"time"
)

// Sessions tracks the clients logged in to one share session. Ids come from
// a counter owned by the table and are never reused while it lives. A
// session idle for longer than idle is rejected on its next request.
type Sessions struct {
	mu     sync.Mutex
	next   uint32
	idle   time.Duration // 0 keeps sessions until logout
	now    func() time.Time
	active map[uint32]time.Time // last seen
}

func NewSessions(idle time.Duration) *Sessions {
	return &Sessions{
		idle:   idle,
		now:    time.Now,
		active: make(map[uint32]time.Time),
	}
}

func (s *Sessions) Open() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	if s.next == 0 {
		s.next = 1
	}
	s.active[s.next] = s.now()
	return s.next
}

// Touch reports whether id is an open session and marks it as seen.
func (s *Sessions) Touch(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen, ok := s.active[id]
	if !ok {
		return false
	}
	now := s.now()
	if s.idle > 0 && now.Sub(seen) > s.idle {
		delete(s.active, id)
		return false
	}
	s.active[id] = now
	return true
}

func (s *Sessions) Close(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

// Expire closes sessions idle for longer than idle and returns how many.
func (s *Sessions) Expire(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	n := 0
	for id, seen := range s.active {
		if seen.Before(cutoff) {
			delete(s.active, id)
			n++
		}
	}
	return n
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
