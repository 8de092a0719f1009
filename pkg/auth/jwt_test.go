package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestSessionTokenRoundTrip(t *testing.T) {
	signed, err := NewSessionToken(7, "admin@example.com", "admin", "session", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionToken() error = %v", err)
	}

	claims, err := Parse(signed, testSecret)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Sub != 7 {
		t.Errorf("sub = %d, want 7", claims.Sub)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("email = %q, want admin@example.com", claims.Email)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q, want admin", claims.Role)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, err := NewSessionToken(7, "admin@example.com", "admin", "session", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionToken() error = %v", err)
	}

	if _, err := Parse(signed, "other-secret"); err == nil {
		t.Error("token signed under a different secret must not parse")
	}
}

func TestParseRejectsUnsignedAlgorithm(t *testing.T) {
	claims := Claims{
		Sub:  7,
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := Parse(signed, testSecret); err == nil {
		t.Error("alg=none token must not parse")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	signed, err := NewSessionToken(7, "admin@example.com", "admin", "session", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("NewSessionToken() error = %v", err)
	}

	if _, err := Parse(signed, testSecret); err == nil {
		t.Error("expired token must not parse")
	}
}
