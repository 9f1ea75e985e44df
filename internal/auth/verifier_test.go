package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func mint(t *testing.T, secret, subject string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestVerify(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	identity := uuid.New()

	got, err := v.Verify(mint(t, "test-secret", identity.String(), time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != identity {
		t.Fatalf("expected %s, got %s", identity, got)
	}
}

func TestVerify_Rejections(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	identity := uuid.New()

	cases := map[string]string{
		"wrong secret":     mint(t, "other-secret", identity.String(), time.Now().Add(time.Hour)),
		"expired":          mint(t, "test-secret", identity.String(), time.Now().Add(-time.Hour)),
		"non-uuid subject": mint(t, "test-secret", "alice", time.Now().Add(time.Hour)),
		"garbage":          "not-a-token",
	}
	for name, token := range cases {
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}
