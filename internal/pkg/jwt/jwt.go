// internal/pkg/jwt/jwt.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoKey        = errors.New("jwt: no verification key configured")
)

// Claims are the session token claims issued by the auth provider.
// The subject is the provider's user id; role is a custom session claim.
type Claims struct {
	Role string `json:"role,omitempty"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the authenticated user id.
func (c *Claims) UserID() string {
	return c.Subject
}

// Service verifies session tokens. RS256 is used when a public key is configured,
// HS256 with the shared secret otherwise.
type Service struct {
	publicKey *rsa.PublicKey
	secret    []byte
	issuer    string
}

// NewService creates JWT service
func NewService(publicKeyPEM, secret, issuer string) (*Service, error) {
	s := &Service{issuer: issuer}
	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		s.publicKey = key
	}
	if secret != "" {
		s.secret = []byte(secret)
	}
	if s.publicKey == nil && s.secret == nil {
		return nil, ErrNoKey
	}
	return s, nil
}

// GenerateToken signs an HS256 session token. Used for local development and tests.
func (s *Service) GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	if s.secret == nil {
		return "", ErrNoKey
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken validates and parses a session token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA:
		if s.publicKey == nil {
			return nil, ErrInvalidToken
		}
		return s.publicKey, nil
	case *jwt.SigningMethodHMAC:
		if s.secret == nil {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	default:
		return nil, ErrInvalidToken
	}
}
