package citadelcbt

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long a finished session stays readable before the
// registry forgets it
const DefaultRetention = 30 * time.Minute

// SessionRegistry owns the live attempts of a running server. A cancelled
// session is removed at once. A submitted or timed-out session stays until its
// review is collected or the retention period runs out.
type SessionRegistry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	rng       *rand.Rand
	rngMu     sync.Mutex
	retention time.Duration
}

// RegistryOption customises a new registry
type RegistryOption func(*SessionRegistry)

// WithRetention overrides DefaultRetention
func WithRetention(d time.Duration) RegistryOption {
	return func(r *SessionRegistry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry(opts ...RegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		sessions:  make(map[string]*Session),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin creates a session for quiz, starts its countdown and registers it.
// The countdown stops when ctx is done.
func (r *SessionRegistry) Begin(ctx context.Context, quiz Quiz, count int, opts ...SessionOption) *Session {
	r.rngMu.Lock()
	rng := rand.New(rand.NewSource(r.rng.Int63()))
	r.rngMu.Unlock()

	opts = append([]SessionOption{WithSessionID(uuid.NewString())}, opts...)
	session := NewSession(quiz, count, rng, opts...)

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	session.Start(ctx)
	go r.expire(ctx, session)
	VerboseLog("Session %s started on quiz %s with %d questions", session.ID, quiz.ID, len(session.Questions()))
	return session
}

// expire drops session once it has finished and the retention period passed
func (r *SessionRegistry) expire(ctx context.Context, session *Session) {
	select {
	case <-ctx.Done():
		return
	case <-session.Done():
	}
	time.AfterFunc(r.retention, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.sessions[session.ID] == session {
			delete(r.sessions, session.ID)
			VerboseLog("Session %s expired", session.ID)
		}
	})
}

// Get returns a registered session
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Cancel stops a session and forgets it
func (r *SessionRegistry) Cancel(id string) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		session.Cancel()
	}
}

// Collect removes a submitted session and hands back its review record
func (r *SessionRegistry) Collect(id string) (ReviewRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return ReviewRecord{}, false
	}
	record, ok := session.Record()
	if !ok {
		return ReviewRecord{}, false
	}
	delete(r.sessions, id)
	return record, true
}

// Len is the number of registered sessions
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown cancels every active session
func (r *SessionRegistry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Cancel()
	}
}
