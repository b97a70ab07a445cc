package auth

import (
	"testing"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

var issued = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"

	token, err := GenerateToken(secret, 1, "admin", model.RoleAdmin, issued, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := ValidateToken(secret, token, issued.Add(time.Minute))
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.UserID != 1 {
		t.Errorf("expected user_id 1, got %d", claims.UserID)
	}
	if claims.Username != "admin" {
		t.Errorf("expected username 'admin', got %q", claims.Username)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("expected role 'admin', got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Error("expected a token ID")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret1", 1, "admin", model.RoleAdmin, issued, time.Hour)

	_, err := ValidateToken("secret2", token, issued)
	if err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	_, err := ValidateToken("secret", "not-a-token", issued)
	if err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestTokenExpiry(t *testing.T) {
	secret := "test"
	token, _ := GenerateToken(secret, 1, "test", model.RoleUser, issued, 2*time.Hour)

	claims, err := ValidateToken(secret, token, issued.Add(time.Hour))
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(issued.Add(2 * time.Hour)) {
		t.Errorf("expected expiry %v, got %v", issued.Add(2*time.Hour), claims.ExpiresAt.Time)
	}

	if _, err := ValidateToken(secret, token, issued.Add(3*time.Hour)); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestDefaultTTL(t *testing.T) {
	token, _ := GenerateToken("s", 1, "test", model.RoleUser, issued, 0)
	claims, err := ValidateToken("s", token, issued)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(issued.Add(DefaultTTL)) {
		t.Errorf("expected default expiry, got %v", claims.ExpiresAt.Time)
	}
}

func TestTokenIDsUnique(t *testing.T) {
	a, _ := GenerateToken("s", 1, "test", model.RoleUser, issued, time.Hour)
	b, _ := GenerateToken("s", 1, "test", model.RoleUser, issued, time.Hour)
	ca, _ := ValidateToken("s", a, issued)
	cb, _ := ValidateToken("s", b, issued)
	if ca.ID == cb.ID {
		t.Error("expected distinct token IDs")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("expected mismatch")
	}
}
