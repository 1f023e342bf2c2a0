package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStateTTL bounds how long a user may take at the consent screen.
const DefaultStateTTL = 10 * time.Minute

// OAuthState is what the callback needs to finish a login it started.
type OAuthState struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StateStore holds pending OAuth states for CSRF protection. Consume
// removes the state, so each one is usable once.
type StateStore interface {
	Save(ctx context.Context, state string, entry OAuthState) error
	Consume(ctx context.Context, state string) (OAuthState, bool, error)
}

// MemoryStateStore keeps states in process. Suitable for a single instance.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]OAuthState
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryStateStore creates a state store and starts its cleanup loop.
func NewMemoryStateStore() *MemoryStateStore {
	s := &MemoryStateStore{
		states: make(map[string]OAuthState),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go s.cleanup(5 * time.Minute)
	return s
}

func (s *MemoryStateStore) Save(ctx context.Context, state string, entry OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[state]; ok {
		return fmt.Errorf("oauth state already exists")
	}
	s.states[state] = entry
	return nil
}

func (s *MemoryStateStore) Consume(ctx context.Context, state string) (OAuthState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[state]
	if !ok {
		return OAuthState{}, false, nil
	}
	delete(s.states, state)
	if s.now().After(entry.ExpiresAt) {
		return OAuthState{}, false, nil
	}
	return entry, true, nil
}

// Close stops the cleanup loop.
func (s *MemoryStateStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStateStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

func (s *MemoryStateStore) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, entry := range s.states {
		if now.After(entry.ExpiresAt) {
			delete(s.states, key)
		}
	}
}

const redisStatePrefix = "oauth_state:"

// RedisStateStore shares states between instances behind a load balancer.
type RedisStateStore struct {
	client redis.UniversalClient
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Save(ctx context.Context, state string, entry OAuthState) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("oauth state already expired")
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode oauth state: %w", err)
	}
	ok, err := s.client.SetNX(ctx, redisStatePrefix+state, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	if !ok {
		return fmt.Errorf("oauth state already exists")
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (OAuthState, bool, error) {
	payload, err := s.client.GetDel(ctx, redisStatePrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return OAuthState{}, false, nil
	}
	if err != nil {
		return OAuthState{}, false, fmt.Errorf("consume oauth state: %w", err)
	}

	var entry OAuthState
	if err := json.Unmarshal(payload, &entry); err != nil {
		return OAuthState{}, false, fmt.Errorf("decode oauth state: %w", err)
	}
	if time.Now().After(entry.ExpiresAt) {
		return OAuthState{}, false, nil
	}
	return entry, true, nil
}
