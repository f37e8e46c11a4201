package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)

	tok, err := j.Sign(42)
	require.NoError(t, err)

	uid, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}

func TestJWTWrongSecret(t *testing.T) {
	tok, err := NewJWT("secret-a", time.Hour).Sign(1)
	require.NoError(t, err)

	_, err = NewJWT("secret-b", time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	j := NewJWT("test-secret", -time.Minute)

	tok, err := j.Sign(1)
	require.NoError(t, err)

	_, err = j.Verify(tok)
	assert.Error(t, err)
}

func TestJWTGarbage(t *testing.T) {
	_, err := NewJWT("test-secret", time.Hour).Verify("not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashCompare(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", hash)

	assert.True(t, ComparePassword(hash, "hunter2hunter2"))
	assert.False(t, ComparePassword(hash, "wrong"))
}
