package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	token, expiresAt, err := GenerateToken("user-1", "tenant-1", "admin", secret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if until := time.Until(expiresAt); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("expiry %v not about an hour out", expiresAt)
	}

	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("unexpected claims type")
	}
	if claims["sub"] != "user-1" {
		t.Fatalf("sub = %v", claims["sub"])
	}
	if claims["tenant_id"] != "tenant-1" {
		t.Fatalf("tenant_id = %v", claims["tenant_id"])
	}
	if claims["role"] != "admin" {
		t.Fatalf("role = %v", claims["role"])
	}
	if _, ok := claims["exp"].(float64); !ok {
		t.Fatal("exp claim missing")
	}
}

func TestGenerateTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := GenerateToken("user-1", "tenant-1", "member", "right-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, err = jwt.Parse(token, func(*jwt.Token) (any, error) {
		return []byte("wrong-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	if _, _, err := GenerateToken("", "tenant-1", "admin", "secret", time.Hour); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if _, _, err := GenerateToken("user-1", "tenant-1", "admin", "", time.Hour); err == nil {
		t.Fatal("expected error for missing secret")
	}
}
