package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

func TestValidateRS256SessionToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	svc, err := NewService(string(pemKey), "", "https://clerk.example.com")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	claims := Claims{
		Role: "admin",
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "user_2abc",
			Issuer:    "https://clerk.example.com",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := svc.ValidateToken(signed)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.UserID() != "user_2abc" || got.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", got)
	}

	// HS256 tokens are rejected when no shared secret is configured.
	hs, _ := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("x"))
	if _, err := svc.ValidateToken(hs); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenIssuerAndExpiry(t *testing.T) {
	svc, err := NewService("", "secret", "issuer-a")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	expired, _ := svc.GenerateToken("user_1", "", -time.Minute)
	if _, err := svc.ValidateToken(expired); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	other, _ := NewService("", "secret", "issuer-b")
	wrongIssuer, _ := other.GenerateToken("user_1", "", time.Minute)
	if _, err := svc.ValidateToken(wrongIssuer); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewServiceRequiresKey(t *testing.T) {
	if _, err := NewService("", "", ""); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}
