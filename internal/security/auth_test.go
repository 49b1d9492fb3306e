package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/africaresearchbase/arb/internal/conf"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(&conf.SecuritySettings{
		JWTSecret:     "test-secret-for-signing-tokens",
		TokenTTLHours: 1,
	})
}

func TestPasswordHashRoundTrip(t *testing.T) {
	s := newTestService(t)

	hash, err := s.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, s.CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, s.CheckPassword(hash, "wrong password"))
}

func TestIssueAndValidateToken(t *testing.T) {
	s := newTestService(t)

	token, err := s.IssueToken("user-123", "amina@example.org")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "amina@example.org", claims.Email)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	s := newTestService(t)

	token, err := s.IssueToken("user-123", "amina@example.org")
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := s.ValidateToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService(&conf.SecuritySettings{JWTSecret: "different", TokenTTLHours: 1})
		_, err := other.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := Claims{
			UserID: "user-123",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				Subject:   "user-123",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
		require.NoError(t, err)
		_, err = s.ValidateToken(expired)
		assert.Error(t, err)
	})

	t.Run("unsigned algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-123"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.ValidateToken(unsigned)
		assert.Error(t, err)
	})
}

func TestGenerateAPIKey(t *testing.T) {
	s := newTestService(t)

	key, hash, err := s.GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, apiKeyPrefix))
	assert.Equal(t, HashAPIKey(key), hash)
	assert.Len(t, hash, 64)

	key2, hash2, err := s.GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
	assert.NotEqual(t, hash, hash2)
}
