package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammadumair29/multimodal-ai-chatbot/domain"
	"github.com/muhammadumair29/multimodal-ai-chatbot/utils/log"
)

const DefaultSessionTTL = 2 * time.Hour

// SessionStore owns the live sessions. Ending a session drops its transcript
// and chat handle.
type SessionStore struct {
	service *ChatService
	ttl     time.Duration
	newID   func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore(service *ChatService, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		service:  service,
		ttl:      ttl,
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
	}
}

func (st *SessionStore) Service() *ChatService {
	return st.service
}

// Start creates and registers a new session.
func (st *SessionStore) Start(ctx context.Context) *Session {
	sess := st.service.StartSession(ctx, st.newID())

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Execute runs turn on the session with the given id.
func (st *SessionStore) Execute(ctx context.Context, id string, turn Turn) (TurnResult, error) {
	sess, err := st.Get(id)
	if err != nil {
		return TurnResult{}, err
	}
	return st.service.Execute(ctx, sess, turn)
}

func (st *SessionStore) End(ctx context.Context, id string) error {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	st.service.EndSession(ctx, sess)
	return nil
}

// Sweep ends every session idle for longer than the TTL and returns how many
// were ended.
func (st *SessionStore) Sweep(ctx context.Context, now time.Time) int {
	var expired []*Session

	st.mu.Lock()
	for id, sess := range st.sessions {
		if now.Sub(sess.LastActive()) > st.ttl {
			expired = append(expired, sess)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, sess := range expired {
		st.service.EndSession(ctx, sess)
	}
	if len(expired) > 0 {
		log.WithCtx(ctx).Info("🧹 Expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (st *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = st.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			st.Sweep(ctx, now)
		}
	}
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
