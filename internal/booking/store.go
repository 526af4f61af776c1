package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSessionTTL bounds how long an idle wizard session is kept.
const DefaultSessionTTL = 2 * time.Hour

// SessionStore persists wizard sessions.
type SessionStore interface {
	Save(ctx context.Context, w *Wizard) error
	// Load returns ErrSessionNotFound for unknown or expired ids.
	Load(ctx context.Context, id string) (*Wizard, error)
}

// RedisSessionStore keeps sessions as JSON under booking:session:<id>. Every
// save refreshes the TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{redis: client, ttl: ttl, tracer: otel.Tracer("dentacare.booking.sessions")}
}

func (s *RedisSessionStore) Save(ctx context.Context, w *Wizard) error {
	ctx, span := s.tracer.Start(ctx, "booking.save_session")
	defer span.End()

	data, err := json.Marshal(w)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(w.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, id string) (*Wizard, error) {
	ctx, span := s.tracer.Start(ctx, "booking.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("booking: failed to load session: %w", err)
	}

	var w Wizard
	if err := json.Unmarshal(data, &w); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("booking: failed to decode session: %w", err)
	}
	return &w, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("booking:session:%s", id)
}

// MemorySessionStore keeps sessions in process, expiring them lazily.
type MemorySessionStore struct {
	mu    sync.Mutex
	items map[string]memorySession
	ttl   time.Duration
	now   func() time.Time
}

type memorySession struct {
	data      []byte
	expiresAt time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{items: make(map[string]memorySession), ttl: ttl, now: time.Now}
}

func (s *MemorySessionStore) Save(_ context.Context, w *Wizard) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("booking: failed to marshal session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[w.ID] = memorySession{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemorySessionStore) Load(_ context.Context, id string) (*Wizard, error) {
	s.mu.Lock()
	item, ok := s.items[id]
	if ok && !s.now().Before(item.expiresAt) {
		delete(s.items, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var w Wizard
	if err := json.Unmarshal(item.data, &w); err != nil {
		return nil, fmt.Errorf("booking: failed to decode session: %w", err)
	}
	return &w, nil
}
