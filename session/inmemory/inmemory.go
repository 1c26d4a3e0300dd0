package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/conflictcast/session"
)

type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

func NewInMemorySessionStore() *Store {
	return &Store{sessions: make(map[string]*Session), now: time.Now}
}

func (store *Store) EnsureSession(_ context.Context, id string, ttl time.Duration) (session.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := store.now()
	if id != "" {
		if sess, ok := store.sessions[id]; ok && !sess.expired(now) {
			sess.expire(now, ttl)
			return sess, nil
		}
	} else {
		id = uuid.NewString()
	}

	sess := &Session{id: id}
	sess.expire(now, ttl)
	store.sessions[id] = sess
	return sess, nil
}

func (store *Store) GetSession(_ context.Context, id string) (session.Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	sess, ok := store.sessions[id]
	if !ok || sess.expired(store.now()) {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (store *Store) Close() error { return nil }

type Session struct {
	id        string
	expiresAt time.Time
	items     []session.Item
	mu        sync.RWMutex
}

func (s *Session) ID() string { return s.id }

func (s *Session) expire(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		s.expiresAt = time.Time{}
		return
	}
	s.expiresAt = now.Add(ttl)
}

func (s *Session) expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expiresAt.IsZero() && now.After(s.expiresAt)
}

func (s *Session) AddItems(_ context.Context, items ...session.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
	return nil
}

func (s *Session) Items(_ context.Context) ([]session.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]session.Item, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *Session) History(ctx context.Context) ([]string, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	return session.FormatHistory(items), nil
}
