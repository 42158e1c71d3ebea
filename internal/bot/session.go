package bot

import (
	"sync"
	"time"
)

type dialogStage int

const (
	stageTitle dialogStage = iota
	stageDescription
	stageDueDate
	stageCategory
)

// draft accumulates /newtask dialog input.
type draft struct {
	Title       string
	Description string
	DueDate     *time.Time
	Category    string
}

type session struct {
	stage     dialogStage
	draft     draft
	startedAt time.Time
}

// sessionStore keeps per-user dialog state. Sessions live until the
// dialog completes, is cancelled, or the TTL expires.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[int64]*session
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, sessions: make(map[int64]*session)}
}

func (s *sessionStore) start(userID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &session{stage: stageTitle, startedAt: time.Now()}
	s.sessions[userID] = sess
	return sess
}

func (s *sessionStore) get(userID int64) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, false
	}
	if time.Since(sess.startedAt) > s.ttl {
		delete(s.sessions, userID)
		return nil, false
	}
	return sess, true
}

func (s *sessionStore) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
