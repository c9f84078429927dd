package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/docsage/ragpipe/config"
	"github.com/docsage/ragpipe/schema"
)

const defaultKeyPrefix = "ragpipe:session:"

// RedisStore keeps conversations in Redis so sessions survive restarts and
// are shared across replicas. Each session is one JSON value with a TTL that
// refreshes on every append.
type RedisStore struct {
	client    rueidis.Client
	keyPrefix string
	ttl       time.Duration
	maxRounds int
}

func NewRedisStore(cfg *config.MemoryConfig) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis for sessions: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: prefix,
		ttl:       time.Duration(cfg.TTLSeconds) * time.Second,
		maxRounds: cfg.MaxRounds,
	}, nil
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *RedisStore) AppendExchange(ctx context.Context, sessionID string, ex schema.Exchange) error {
	history, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	history = append(history, ex)
	if s.maxRounds > 0 && len(history) > s.maxRounds {
		history = history[len(history)-s.maxRounds:]
	}
	payload, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	cmd := s.client.B().Set().Key(s.key(sessionID)).Value(string(payload))
	var built rueidis.Completed
	if s.ttl > 0 {
		built = cmd.Ex(s.ttl).Build()
	} else {
		built = cmd.Build()
	}
	if err := s.client.Do(ctx, built).Error(); err != nil {
		return fmt.Errorf("store session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) LastN(ctx context.Context, sessionID string, n int) ([]schema.Exchange, error) {
	history, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	return history, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(sessionID)).Build()).Error(); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Close() {
	s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, sessionID string) ([]schema.Exchange, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(sessionID)).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var history []schema.Exchange
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return history, nil
}

// NewStore builds the configured conversation store.
func NewStore(cfg *config.MemoryConfig) (ConversationStore, error) {
	if cfg == nil {
		return NewInMemoryStore(0), nil
	}
	switch cfg.Store {
	case "redis":
		return NewRedisStore(cfg)
	case "", "inmemory", "memory":
		return NewInMemoryStore(cfg.MaxRounds), nil
	default:
		return nil, fmt.Errorf("unknown memory store %q", cfg.Store)
	}
}
