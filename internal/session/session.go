// Package session records the single currently-valid refresh token per
// identity in Redis. A new issuance overwrites the previous entry, so at
// most one refresh token is usable per identity at any instant.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/apperr"
)

// ErrNoSession is returned when an identity has no refresh-token entry,
// either because it never logged in, logged out, or the TTL elapsed.
var ErrNoSession = errors.New("no session on file")

// Store is the refresh-token session store consumed by the auth layer.
type Store interface {
	// Put overwrites the identity's refresh-token entry with the given TTL.
	Put(ctx context.Context, identityID, refreshToken string, ttl time.Duration) error
	// Get returns the identity's current refresh token, or ErrNoSession.
	Get(ctx context.Context, identityID string) (string, error)
	// Delete removes the identity's entry. Deleting an absent entry is not
	// an error.
	Delete(ctx context.Context, identityID string) error
}

// RedisStore implements Store on a shared Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Connect dials Redis from a URL and verifies the connection.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Key returns the store key for an identity's refresh token.
func Key(identityID string) string {
	return "refresh_token:" + identityID
}

func (s *RedisStore) Put(ctx context.Context, identityID, refreshToken string, ttl time.Duration) error {
	if err := s.client.Set(ctx, Key(identityID), refreshToken, ttl).Err(); err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, "session store unavailable", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, identityID string) (string, error) {
	val, err := s.client.Get(ctx, Key(identityID)).Result()
	if err != nil {
		// Absence is a distinct condition, never folded into transport
		// failures and vice versa.
		if errors.Is(err, redis.Nil) {
			return "", ErrNoSession
		}
		return "", apperr.Wrap(apperr.UpstreamUnavailable, "session store unavailable", err)
	}
	return val, nil
}

func (s *RedisStore) Delete(ctx context.Context, identityID string) error {
	if err := s.client.Del(ctx, Key(identityID)).Err(); err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, "session store unavailable", err)
	}
	return nil
}
