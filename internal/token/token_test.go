package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
)

func newTestSigner() *Signer {
	return NewSigner("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestIssueAndVerify(t *testing.T) {
	s := newTestSigner()

	pair, err := s.Issue("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	id, err := s.Verify(pair.AccessToken, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id)

	id, err = s.Verify(pair.RefreshToken, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id)
}

func TestIssueIsUniquePerCall(t *testing.T) {
	s := newTestSigner()

	// Freeze the clock: issuance timestamps have second granularity, so
	// back-to-back issuances for the same identity would otherwise
	// collide and rotation could not invalidate the superseded token.
	fixed := time.Now()
	s.now = func() time.Time { return fixed }

	first, err := s.Issue("user-123")
	require.NoError(t, err)
	second, err := s.Issue("user-123")
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	for _, pair := range []Pair{first, second} {
		id, err := s.Verify(pair.RefreshToken, KindRefresh)
		require.NoError(t, err)
		assert.Equal(t, "user-123", id)
	}
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	s := newTestSigner()

	pair, err := s.Issue("user-123")
	require.NoError(t, err)

	// An access token must not pass as a refresh token; the secrets differ.
	_, err = s.Verify(pair.AccessToken, KindRefresh)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	assert.False(t, IsExpired(err))

	_, err = s.Verify(pair.RefreshToken, KindAccess)
	require.Error(t, err)
}

func TestVerifyExpiredIsDistinguishable(t *testing.T) {
	s := newTestSigner()

	issued := time.Now()
	s.now = func() time.Time { return issued }
	pair, err := s.Issue("user-123")
	require.NoError(t, err)

	// Jump past the 15 minute access lifetime but stay inside refresh.
	s.now = func() time.Time { return issued.Add(16 * time.Minute) }

	_, err = s.Verify(pair.AccessToken, KindAccess)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	assert.True(t, IsExpired(err), "expiry must not be reported as a bad signature")

	_, err = s.Verify(pair.RefreshToken, KindRefresh)
	require.NoError(t, err, "refresh token should outlive the access token")
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := newTestSigner()

	pair, err := s.Issue("user-123")
	require.NoError(t, err)

	tampered := []byte(pair.AccessToken)
	tampered[len(tampered)-1] ^= 0x01

	_, err = s.Verify(string(tampered), KindAccess)
	require.Error(t, err)
	assert.False(t, IsExpired(err))
}

func TestDecodeSubject(t *testing.T) {
	s := newTestSigner()

	issued := time.Now().Add(-30 * 24 * time.Hour)
	s.now = func() time.Time { return issued }
	pair, err := s.Issue("user-123")
	require.NoError(t, err)

	// Long expired, but logout must still recover the identity.
	id, err := DecodeSubject(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id)

	_, err = DecodeSubject("not-a-token")
	require.Error(t, err)
}
