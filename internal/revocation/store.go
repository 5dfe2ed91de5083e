// Package revocation keeps a denylist of session tokens that were logged out
// before their natural expiry.
//
// Both operations deliberately swallow store failures. Revoke logs and returns
// so that logout never fails on a Redis outage, and IsRevoked fails open
// (reports "not revoked") so that an outage does not lock every user out. The
// consequence is that a logged-out token can be accepted again while the store
// is unreachable. That is an accepted risk of this service, not a bug; change
// the direction only together with the availability requirements.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix = "blacklist:"
	marker    = "blacklisted"
)

// Store is the revocation side-channel consulted on every authenticated
// request. It knows nothing about token contents.
type Store interface {
	Revoke(ctx context.Context, token string)
	IsRevoked(ctx context.Context, token string) bool
}

type RedisStore struct {
	client  redis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
	log     zerolog.Logger
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration, timeout time.Duration, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		ttl:     ttl,
		timeout: timeout,
		log:     log.With().Str("component", "revocation").Logger(),
	}
}

// Revoke blacklists token for the configured TTL. Repeating it only refreshes
// the expiry.
func (s *RedisStore) Revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, keyPrefix+token, marker, s.ttl).Err(); err != nil {
		s.log.Error().Err(err).Msg("blacklist token failed")
	}
}

// IsRevoked reports whether token holds a live blacklist entry.
func (s *RedisStore) IsRevoked(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("blacklist lookup failed, treating token as not revoked")
		return false
	}
	return val == marker
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
