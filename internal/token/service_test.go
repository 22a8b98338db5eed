package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	return NewService(testSecret, ttl)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	for _, userID := range []int64{1, 42, 9007199254740} {
		tok, err := svc.Issue(userID)
		require.NoError(t, err)
		require.NotEmpty(t, tok)

		got, err := svc.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	}
}

func TestVerifyExpired(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	issued := time.Now()
	svc.now = func() time.Time { return issued }

	tok, err := svc.Issue(7)
	require.NoError(t, err)

	// Still valid just before the TTL elapses.
	svc.now = func() time.Time { return issued.Add(29 * time.Minute) }
	got, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	// Expired once the TTL has passed.
	svc.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyTamperedSignature(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	tok, err := svc.Issue(7)
	require.NoError(t, err)

	// Flip a byte in the signature segment.
	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyWrongSecret(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)
	other := NewService("ffffffffffffffffffffffffffffffff", 30*time.Minute)

	tok, err := other.Issue(7)
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyMissingSubject(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyNonNumericSubject(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	claims := jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	claims := jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyGarbage(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	for _, tok := range []string{"", "not-a-token", "a.b", "a.b.c"} {
		_, err := svc.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenMalformed, "input %q", tok)
	}
}

func TestRefreshResetsTTL(t *testing.T) {
	svc := newTestService(t, 30*time.Minute)

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	first, err := svc.Issue(7)
	require.NoError(t, err)

	// Refresh 20 minutes in; the new token outlives the first.
	svc.now = func() time.Time { return issued.Add(20 * time.Minute) }
	second, err := svc.Refresh(7)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(35 * time.Minute) }
	_, err = svc.Verify(first)
	assert.ErrorIs(t, err, ErrTokenExpired)

	got, err := svc.Verify(second)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}
