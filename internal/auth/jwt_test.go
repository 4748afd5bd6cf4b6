package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManager_GenerateAndParse(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour)
	token, err := manager.GenerateToken("ops@buyers.test", RoleOperator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "ops@buyers.test" || claims.Role != RoleOperator || claims.Issuer != issuer {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := manager.ParseToken(token + "tampered"); err == nil {
		t.Fatalf("expected parse error for tampered token")
	}
	if _, err := NewJWTManager("other", time.Hour).ParseToken(token); err == nil {
		t.Fatalf("expected parse error for foreign secret")
	}
}

func TestJWTManager_DefaultsToViewer(t *testing.T) {
	manager := NewJWTManager("secret", 0)
	if manager.TTL() != 24*time.Hour {
		t.Fatalf("expected default ttl, got %s", manager.TTL())
	}
	token, err := manager.GenerateToken("reader", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Role != RoleViewer {
		t.Fatalf("expected viewer role, got %q", claims.Role)
	}
}

func TestJWTManager_EmptySecret(t *testing.T) {
	manager := NewJWTManager("", time.Hour)
	if _, err := manager.GenerateToken("ops", RoleOperator); err == nil {
		t.Fatalf("expected error when secret is empty")
	}
}

func TestAuthenticator_Login(t *testing.T) {
	hash, err := HashPassword("turmeric-2024")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	manager := NewJWTManager("secret", time.Hour)
	authn := NewAuthenticator([]Operator{
		{Email: " Ops@Buyers.test ", PasswordHash: hash},
		{Email: "", PasswordHash: hash},
	}, manager)

	token, err := authn.Login("ops@buyers.test", "turmeric-2024")
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}
	claims, err := manager.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Role != RoleOperator || claims.Subject != "ops@buyers.test" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := authn.Login("ops@buyers.test", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := authn.Login("nobody@buyers.test", "turmeric-2024"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown operator, got %v", err)
	}
	if _, err := authn.Login("", ""); err == nil {
		t.Fatalf("expected error for empty credentials")
	}
}

func TestHashPasswordRejectsShortPasswords(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
}
