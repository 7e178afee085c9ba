package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/model"
)

const (
	keyPrefix      = "otp:session:"
	emailKeyPrefix = "otp:email:"
)

// Redis is the production Store backed by go-redis. Sessions live under
// otp:session:<id> with a secondary otp:email:<email> index, both expiring
// with the session TTL so stale state cleans itself up.
type Redis struct{ rdb *redis.Client }

// NewRedis constructs a Redis-backed session store.
func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

// Save writes the session and its email index with the given TTL.
func (r *Redis) Save(ctx context.Context, s *model.VerificationSession, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, keyPrefix+s.ID, b, ttl)
	pipe.Set(ctx, emailKeyPrefix+strings.ToLower(s.Email), s.ID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Get loads a session by ID.
func (r *Redis) Get(ctx context.Context, id string) (*model.VerificationSession, error) {
	b, err := r.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	var s model.VerificationSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByEmail resolves the email index and loads the session.
func (r *Redis) GetByEmail(ctx context.Context, email string) (*model.VerificationSession, error) {
	id, err := r.rdb.Get(ctx, emailKeyPrefix+strings.ToLower(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Delete consumes the session and its email index.
func (r *Redis) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrSessionExpired) {
			return nil
		}
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, keyPrefix+id)
	pipe.Del(ctx, emailKeyPrefix+strings.ToLower(s.Email))
	_, err = pipe.Exec(ctx)
	return err
}
