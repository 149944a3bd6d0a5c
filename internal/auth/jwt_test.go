package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-test-key"

func mintHS256(t *testing.T, secret, subject, email string, expiresIn time.Duration) string {
	t.Helper()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	token := mintHS256(t, testSecret, "user-123", "user@example.com", time.Hour)

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Fatalf("subject = %q, want %q", claims.Subject, "user-123")
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("email = %q, want %q", claims.Email, "user@example.com")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewVerifier(testSecret)
	token := mintHS256(t, "some-other-secret", "user-123", "user@example.com", time.Hour)

	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)
	token := mintHS256(t, testSecret, "user-123", "user@example.com", -time.Hour)

	if _, err := v.Verify(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestVerifyGarbageToken(t *testing.T) {
	v := NewVerifier(testSecret)
	if _, err := v.Verify("not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestVerifyUnsupportedAlgorithm(t *testing.T) {
	v := NewVerifier(testSecret)

	// alg "none" carries no signature and must never validate.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign none-alg token: %v", err)
	}

	_, err = v.Verify(signed)
	if err == nil {
		t.Fatal("expected error for alg=none token")
	}
	if !strings.Contains(err.Error(), "unsupported signing algorithm") {
		t.Fatalf("error = %v, want unsupported signing algorithm", err)
	}
}
