// Package security handles credential hashing, JWT issuance and API key
// management for the research base API.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/africaresearchbase/arb/internal/conf"
	"github.com/africaresearchbase/arb/internal/errors"
)

// AuthMethod represents the method used for authentication.
type AuthMethod string

const (
	AuthMethodNone   AuthMethod = ""       // No authentication used
	AuthMethodBearer AuthMethod = "bearer" // Authentication via JWT bearer token
	AuthMethodAPIKey AuthMethod = "apikey" // Authentication via API key
)

// apiKeyPrefix marks issued keys so they are recognizable in logs and
// support requests without exposing the secret part.
const apiKeyPrefix = "arb_"

const tokenIssuer = "africaresearchbase"

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Service issues and validates credentials.
type Service struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewService builds an auth service from security settings.
func NewService(settings *conf.SecuritySettings) *Service {
	return &Service{
		secret:   []byte(settings.JWTSecret),
		tokenTTL: time.Duration(settings.TokenTTLHours) * time.Hour,
	}
}

// HashPassword hashes a plaintext password with bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryAuth).
			Context("operation", "hash_password").
			Build()
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func (s *Service) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a bearer token for the user.
func (s *Service) IssueToken(userID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryAuth).
			Context("operation", "issue_token").
			Build()
	}
	return signed, nil
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, errors.Newf("invalid or expired token").
			Category(errors.CategoryAuth).
			Build()
	}
	return claims, nil
}

// GenerateAPIKey creates a new API key and the SHA-256 hash stored for
// lookup. The plaintext key is returned once and never persisted.
func (s *Service) GenerateAPIKey() (key, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", errors.New(err).
			Category(errors.CategoryAuth).
			Context("operation", "generate_api_key").
			Build()
	}
	key = apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)
	return key, HashAPIKey(key), nil
}

// HashAPIKey returns the hex SHA-256 digest used to look up an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
