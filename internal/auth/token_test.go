package auth

import (
	"testing"
	"time"

	"github.com/ayursetu/setu/internal/core/domain"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	user := domain.User{Name: "Dr. Asha Vaidya", Email: "asha@clinic.in", Role: domain.RoleDoctor}

	token, err := Generate("secret", user, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := Validate("secret", token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Email != user.Email || claims.Name != user.Name || claims.Role != user.Role {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	user := domain.User{Name: "Meena Rao", Email: "meena@home.in", Role: domain.RolePatient}
	token, err := Generate("secret", user, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Validate("other", token); err == nil {
		t.Fatalf("expected signature mismatch error")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	user := domain.User{Name: "Meena Rao", Email: "meena@home.in", Role: domain.RolePatient}
	token, err := Generate("secret", user, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Validate("secret", token); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	if _, err := Generate("", domain.User{}, time.Hour); err == nil {
		t.Fatalf("expected error without a secret")
	}
}
