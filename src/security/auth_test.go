package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	a := NewAuthService(testSecret, time.Minute)

	first, err := a.GenerateToken(42)
	require.NoError(t, err)
	second, err := a.GenerateToken(42)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	id, err := a.ValidateToken(first)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = NewAuthService("another-secret-another-secret-xx", time.Minute).ValidateToken(first)
	assert.Error(t, err)
}

func TestValidateToken_Rejects(t *testing.T) {
	a := NewAuthService(testSecret, time.Minute)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	s, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = a.ValidateToken(s)
	assert.Error(t, err)

	noSub := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()})
	s, err = noSub.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = a.ValidateToken(s)
	assert.Error(t, err)

	_, err = a.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestPasswordsAndRefreshTokens(t *testing.T) {
	a := NewAuthService(testSecret, 0)
	assert.Equal(t, time.Hour, a.TokenExpiry)

	hash, err := a.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, a.CompareHashAndPassword(hash, "correct horse"))
	assert.Error(t, a.CompareHashAndPassword(hash, "battery staple"))

	r1, err := a.GenerateRefreshToken()
	require.NoError(t, err)
	r2, err := a.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)
	assert.Len(t, r1, 44)
}
