package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwaldner/strikemap/internal/audit"
	"github.com/jwaldner/strikemap/internal/heatmap"
	"github.com/jwaldner/strikemap/internal/logger"
)

const CookieName = "strikemap_session"

// Session is one browser's heat map.
type Session struct {
	ID   string
	View *heatmap.View

	lastSeen time.Time
}

// Store keeps sessions in memory and evicts the ones idle longer than ttl.
type Store struct {
	builder  heatmap.GridBuilder
	recorder audit.Recorder
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(builder heatmap.GridBuilder, recorder audit.Recorder, ttl time.Duration) *Store {
	if recorder == nil {
		recorder = audit.Discard
	}
	return &Store{
		builder:  builder,
		recorder: recorder,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the live session for id and marks it as seen.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok {
		sess.lastSeen = s.now()
	}
	return sess, ok
}

// GetOrCreate returns the session for id, creating a new one under a fresh
// id when it is unknown.
func (s *Store) GetOrCreate(id string) *Session {
	if sess, ok := s.Get(id); ok {
		return sess
	}

	sess := &Session{ID: uuid.NewString()}
	sess.View = heatmap.NewView(s.builder)
	sess.View.OnSettled = s.recordBuild(sess.ID)

	s.mu.Lock()
	sess.lastSeen = s.now()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logger.Debug.Printf("session %s created", sess.ID)
	return sess
}

// FromRequest resolves the session cookie, issuing a new one if needed.
func (s *Store) FromRequest(w http.ResponseWriter, r *http.Request) *Session {
	var id string
	if c, err := r.Cookie(CookieName); err == nil {
		id = c.Value
	}

	sess := s.GetOrCreate(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict closes and removes sessions idle longer than the ttl.
func (s *Store) Evict() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.View.Close()
		logger.Debug.Printf("session %s evicted", sess.ID)
	}
	return len(expired)
}

// Start runs the eviction janitor until ctx is done.
func (s *Store) Start(ctx context.Context, wg *sync.WaitGroup, interval time.Duration) {
	wg.Add(1)

	ticker := time.NewTicker(interval)

	logger.Info.Printf("starting session janitor (ttl %s)", s.ttl)

	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info.Printf("stopping session janitor")
				return
			case <-ticker.C:
				if n := s.Evict(); n > 0 {
					logger.Info.Printf("evicted %d idle sessions", n)
				}
			}
		}
	}()
}

// Close closes every session's view.
func (s *Store) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.View.Close()
	}
}

func (s *Store) recordBuild(sessionID string) func(*heatmap.Grid, bool) {
	return func(grid *heatmap.Grid, stale bool) {
		s.recorder.Record(audit.BuildRecord{
			BuildID:     grid.BuildID,
			SessionID:   sessionID,
			Inputs:      grid.Inputs,
			Requests:    grid.Requests,
			Failures:    grid.Failures,
			Warning:     grid.Warning,
			DurationMs:  grid.Duration.Milliseconds(),
			Discarded:   stale,
			CompletedAt: s.now(),
		})
	}
}
