package authUtils

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

func parseClaims(t *testing.T, tokenString, secret string) jwt.MapClaims {
	t.Helper()
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token did not parse: %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("unexpected claims type")
	}
	return claims
}

func TestIssueSessionToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("AUTH_TOKEN_TTL_HOURS", "")

	tokenString, err := IssueSessionToken("user-1")
	if err != nil {
		t.Fatal(err)
	}

	claims := parseClaims(t, tokenString, "test-secret")
	if claims["user_id"] != "user-1" {
		t.Errorf("expected user_id user-1, got %v", claims["user_id"])
	}
	if claims["iss"] != TokenIssuer {
		t.Errorf("expected issuer %q, got %v", TokenIssuer, claims["iss"])
	}

	exp := int64(claims["exp"].(float64))
	want := time.Now().Add(72 * time.Hour).Unix()
	if diff := exp - want; diff < -5 || diff > 5 {
		t.Errorf("expected expiry near %d, got %d", want, exp)
	}
}

func TestSessionTokenTTLOverride(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL_HOURS", "6")
	if got := SessionTokenTTL(); got != 6*time.Hour {
		t.Errorf("expected 6h TTL, got %v", got)
	}

	t.Setenv("AUTH_TOKEN_TTL_HOURS", "not-a-number")
	if got := SessionTokenTTL(); got != 72*time.Hour {
		t.Errorf("expected 72h default TTL, got %v", got)
	}
}

func TestIssueSessionTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := IssueSessionToken("user-1"); err == nil {
		t.Fatal("expected an error without JWT_SECRET")
	}
}
