package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/conflictcast/session"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
}

// Conn dials redis and checks the connection with a PING.
func Conn(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: timeout,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

func NewRedisSessionStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func metaKey(id string) string  { return fmt.Sprintf("session:%s:meta", id) }
func itemsKey(id string) string { return fmt.Sprintf("session:%s:items", id) }

func (store *Store) EnsureSession(ctx context.Context, id string, ttl time.Duration) (session.Session, error) {
	if id != "" {
		exists, err := store.client.Exists(ctx, metaKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check session %s: %w", id, err)
		}
		if exists == 1 {
			sess := &Session{client: store.client, id: id, ttl: ttl}
			if err := sess.touch(ctx); err != nil {
				return nil, err
			}
			return sess, nil
		}
	} else {
		id = uuid.NewString()
	}

	created := time.Now().UTC().Format(time.RFC3339)
	if err := store.client.Set(ctx, metaKey(id), created, ttl).Err(); err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	return &Session{client: store.client, id: id, ttl: ttl}, nil
}

func (store *Store) GetSession(ctx context.Context, id string) (session.Session, error) {
	exists, err := store.client.Exists(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("check session %s: %w", id, err)
	}
	if exists == 0 {
		return nil, session.ErrNotFound
	}
	ttl, err := store.client.TTL(ctx, metaKey(id)).Result()
	if err != nil || ttl < 0 {
		ttl = 0
	}
	return &Session{client: store.client, id: id, ttl: ttl}, nil
}

func (store *Store) Close() error { return store.client.Close() }

type Session struct {
	client *redis.Client
	id     string
	ttl    time.Duration
}

func (s *Session) ID() string { return s.id }

// touch refreshes the expiry of both keys; a zero ttl keeps them forever.
func (s *Session) touch(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.Expire(ctx, metaKey(s.id), s.ttl)
	pipe.Expire(ctx, itemsKey(s.id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refresh session %s: %w", s.id, err)
	}
	return nil
}

func (s *Session) AddItems(ctx context.Context, items ...session.Item) error {
	if len(items) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(items))
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode session item: %w", err)
		}
		values = append(values, data)
	}
	if err := s.client.RPush(ctx, itemsKey(s.id), values...).Err(); err != nil {
		return fmt.Errorf("append session %s: %w", s.id, err)
	}
	return s.touch(ctx)
}

func (s *Session) Items(ctx context.Context) ([]session.Item, error) {
	raw, err := s.client.LRange(ctx, itemsKey(s.id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", s.id, err)
	}
	out := make([]session.Item, 0, len(raw))
	for _, r := range raw {
		var it session.Item
		if err := json.Unmarshal([]byte(r), &it); err != nil {
			return nil, fmt.Errorf("decode session item: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Session) History(ctx context.Context) ([]string, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	return session.FormatHistory(items), nil
}
