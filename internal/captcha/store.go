package captcha

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	errsentinel "github.com/openmunicipal/civicportal/internal/errs"
)

const answerKeyPrefix = "captcha:answer:"

// RedisStore is the production AnswerStore.
type RedisStore struct{ rdb *redis.Client }

// NewRedisStore constructs a Redis-backed answer store.
func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

// Save writes the answer under the challenge id with a TTL.
func (r *RedisStore) Save(ctx context.Context, id, answer string, ttl time.Duration) error {
	return r.rdb.Set(ctx, answerKeyPrefix+id, answer, ttl).Err()
}

// Consume atomically reads and deletes the answer.
func (r *RedisStore) Consume(ctx context.Context, id string) (string, error) {
	answer, err := r.rdb.GetDel(ctx, answerKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", errsentinel.ErrCaptchaMismatch
	}
	return answer, err
}

// MemoryStore is an in-process AnswerStore for tests and development.
type MemoryStore struct {
	mu      sync.Mutex
	answers map[string]memEntry

	// Now is overridable for expiry tests; defaults to time.Now.
	Now func() time.Time
}

type memEntry struct {
	answer   string
	deadline time.Time
}

// NewMemoryStore constructs an in-memory answer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{answers: map[string]memEntry{}, Now: time.Now}
}

// Save stores the answer with a deadline.
func (m *MemoryStore) Save(_ context.Context, id, answer string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[id] = memEntry{answer: answer, deadline: m.Now().Add(ttl)}
	return nil
}

// Consume reads and deletes the answer if still live.
func (m *MemoryStore) Consume(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.answers[id]
	delete(m.answers, id)
	if !ok || m.Now().After(e.deadline) {
		return "", errsentinel.ErrCaptchaMismatch
	}
	return e.answer, nil
}
