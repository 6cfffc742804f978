package security

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("k"))

	tok, exp, err := Generate(opts, "u1", "teacher")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), exp, 5*time.Second)

	claims, err := Verify(opts, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "teacher", claims.Role)
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	tok, _, err := Generate(DefaultOptions([]byte("a")), "u1", "student")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("b")), tok)
	assert.Error(t, err)
}

func TestVerifyExpired(t *testing.T) {
	// exp is truncated to whole seconds
	opts := Options{Secret: []byte("k"), TTL: time.Nanosecond}
	tok, _, err := Generate(opts, "u1", "student")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, err = Verify(opts, tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyPinsAlgorithmAndIssuer(t *testing.T) {
	tok, _, err := Generate(Options{Secret: []byte("k"), Alg: "HS512"}, "u1", "student")
	require.NoError(t, err)
	_, err = Verify(DefaultOptions([]byte("k")), tok)
	assert.Error(t, err)

	foreign, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "u1",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = Verify(DefaultOptions([]byte("k")), foreign)
	assert.Error(t, err)
}

func TestGenerateRejectsUnknownAlg(t *testing.T) {
	_, _, err := Generate(Options{Secret: []byte("k"), Alg: "RS256"}, "u1", "")
	assert.Error(t, err)
	_, _, err = Generate(DefaultOptions([]byte("k")), "", "")
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestCheckPassword(t *testing.T) {
	h, err := HashPassword("pw")
	require.NoError(t, err)

	ok, rehash := CheckPassword(h, "pw")
	assert.True(t, ok)
	assert.False(t, rehash)

	ok, _ = CheckPassword(h, "nope")
	assert.False(t, ok)

	sum := sha256.Sum256([]byte("legacy"))
	ok, rehash = CheckPassword(hex.EncodeToString(sum[:]), "legacy")
	assert.True(t, ok)
	assert.True(t, rehash)

	ok, _ = CheckPassword(hex.EncodeToString(sum[:]), "other")
	assert.False(t, ok)
}
