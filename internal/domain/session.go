package domain

import (
	"sync"
	"time"
)

// Session is the per-visitor state the post pipeline needs: the CSRF token and
// the time of the last accepted post.
type Session struct {
	Id        string
	CSRFToken string

	mu           sync.Mutex
	lastPostTime time.Time
	lastSeen     time.Time
}

func NewSession(id, csrfToken string, now time.Time) *Session {
	return &Session{Id: id, CSRFToken: csrfToken, lastSeen: now}
}

func (s *Session) LastPostTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPostTime
}

// ReservePost atomically checks the cooldown and records now as the last post
// time. The returned release restores the previous value and must be called
// when the post is not accepted.
func (s *Session) ReservePost(now time.Time, cooldown time.Duration) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.lastPostTime
	if !prev.IsZero() && now.Sub(prev) < cooldown {
		return nil, false
	}
	s.lastPostTime = now
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.lastPostTime.Equal(now) {
			s.lastPostTime = prev
		}
	}, true
}

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
