// Package session keeps visitor sessions in memory. Entries expire after a
// period of inactivity and are swept by a background goroutine.
package session

import (
	"container/list"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/itchan-dev/tinychan/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionsEvictedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "tinychan_sessions_evicted_total",
		Help: "Live sessions dropped because the session store was full",
	},
)

const TokenLength = 32 // bytes

// GenerateToken creates a cryptographically secure random token
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// ValidateToken compares the session token with the submitted one in constant time
func ValidateToken(sessionToken, formToken string) bool {
	if sessionToken == "" || formToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sessionToken), []byte(formToken)) == 1
}

// Store holds at most maxSessions sessions. When it is full the session idle
// the longest is dropped to make room.
type Store struct {
	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*list.Element
	// order runs from least to most recently used
	order *list.List
}

func NewStore(ttl time.Duration, maxSessions int) *Store {
	return &Store{
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
		sessions:    make(map[string]*list.Element),
		order:       list.New(),
	}
}

// Get returns the live session with id, refreshing its expiry.
func (s *Store) Get(id string) (*domain.Session, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess := elem.Value.(*domain.Session)
	if s.expired(sess, now) {
		s.remove(elem)
		return nil, false
	}
	sess.Touch(now)
	s.order.MoveToBack(elem)
	return sess, true
}

// Create starts a new session with a fresh id and CSRF token.
func (s *Store) Create() (*domain.Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	sess := domain.NewSession(uuid.NewString(), token, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.maxSessions > 0 && s.order.Len() >= s.maxSessions {
		s.remove(s.order.Front())
		sessionsEvictedTotal.Inc()
	}
	s.sessions[sess.Id] = s.order.PushBack(sess)
	return sess, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) remove(elem *list.Element) {
	sess := s.order.Remove(elem).(*domain.Session)
	delete(s.sessions, sess.Id)
}

func (s *Store) expired(sess *domain.Session, now time.Time) bool {
	return now.Sub(sess.LastSeen()) > s.ttl
}

// Cleanup drops every expired session and reports how many were removed.
func (s *Store) Cleanup() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		if !s.expired(elem.Value.(*domain.Session), now) {
			// everything after it was used more recently
			break
		}
		s.remove(elem)
		removed++
		elem = next
	}
	return removed
}
// StartBackgroundCleanup sweeps expired sessions every interval until ctx is done.
func (s *Store) StartBackgroundCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started session cleanup", "component", "session", "interval", interval, "ttl", s.ttl)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := s.Cleanup(); removed > 0 {
					logger.Log.Debug("expired sessions removed", "component", "session", "removed", removed)
				}
			case <-ctx.Done():
				logger.Log.Info("stopped session cleanup", "component", "session")
				return
			}
		}
	}()
}
