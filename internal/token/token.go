// Package token issues and verifies the two bearer-token kinds: a
// short-lived access token authorizing individual requests and a
// long-lived refresh token used only to mint new pairs. Tokens are
// stateless; validity is signature plus expiry at verification time.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"storefront/internal/apperr"
)

// Kind selects which secret and lifetime a token is bound to.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Pair is a freshly issued access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"accesstoken"`
	RefreshToken string `json:"refreshtoken"`
}

// Signer signs and verifies tokens. The two kinds use independent
// secrets so compromise of one does not compromise the other.
type Signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewSigner constructs a Signer from the per-kind secrets and lifetimes.
func NewSigner(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// RefreshTTL is the configured refresh token lifetime, used by callers to
// size the session store TTL.
func (s *Signer) RefreshTTL() time.Duration { return s.refreshTTL }

// AccessTTL is the configured access token lifetime.
func (s *Signer) AccessTTL() time.Duration { return s.accessTTL }

// Issue produces an access/refresh pair for the given identity id.
func (s *Signer) Issue(identityID string) (Pair, error) {
	access, err := s.sign(identityID, s.accessSecret, s.accessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.sign(identityID, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Signer) sign(identityID string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		// The jti keeps every issuance unique: timestamps have second
		// granularity, and rotation relies on the new token differing
		// from the one it supersedes.
		ID:        uuid.NewString(),
		Subject:   identityID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify checks signature and expiry and returns the identity id carried
// in the token. An expired token and an invalid one are distinguishable:
// callers react to expiry (refresh flow) but never to a bad signature.
func (s *Signer) Verify(tokenString string, kind Kind) (string, error) {
	secret := s.accessSecret
	if kind == KindRefresh {
		secret = s.refreshSecret
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.Wrap(apperr.Unauthenticated, fmt.Sprintf("%s token expired", kind), err)
		}
		return "", apperr.Wrap(apperr.Unauthenticated, fmt.Sprintf("invalid %s token", kind), err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", apperr.New(apperr.Unauthenticated, fmt.Sprintf("invalid %s token payload", kind))
	}
	return claims.Subject, nil
}

// IsExpired reports whether err came from Verify rejecting an expired
// (rather than forged or malformed) token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

// DecodeSubject recovers the identity id without verifying the
// signature. Logout uses it so an expired or otherwise dead refresh
// token can still name the session to delete.
func DecodeSubject(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", apperr.Wrap(apperr.Unauthenticated, "malformed token", err)
	}
	if claims.Subject == "" {
		return "", apperr.New(apperr.Unauthenticated, "token carries no subject")
	}
	return claims.Subject, nil
}
