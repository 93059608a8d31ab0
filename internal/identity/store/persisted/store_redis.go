package persisted

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"propmaster/internal/session/models"
	"propmaster/pkg/platform/sentinel"
)

var (
	loadDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "propmaster_persisted_session_load_duration_ms",
		Help:    "Latency of persisted session loads from Redis in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

// RedisStore keeps the session blob in Redis so several instances serving
// the same client share one persisted session.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

// WithKey overrides the storage key, e.g. to namespace per client install.
func WithKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithTTL bounds how long a blob survives without being rewritten. It should
// match the provider's refresh token lifetime.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		key:    DefaultKey,
		ttl:    7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context) (*models.Session, error) {
	start := time.Now()
	defer func() {
		loadDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load persisted session: %w: %v", sentinel.ErrUnavailable, err)
	}
	return decode(raw)
}

func (s *RedisStore) Save(ctx context.Context, session *models.Session) error {
	raw, err := encode(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save persisted session: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear persisted session: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}
