package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: "secret",
		Audience:  "authenticated",
		AdminRole: "admin",
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testAuthConfig()
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, 30*time.Minute, AccessTokenPayload{
		Subject: "user-1",
		Email:   "ops@example.com",
		Role:    "admin",
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Email != "ops@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.EffectiveRole() != "admin" {
		t.Fatalf("unexpected role %q", claims.EffectiveRole())
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.Time)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testAuthConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Minute, AccessTokenPayload{Subject: "user-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	cfg.JWTSecret = "other"
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected signature validation to fail")
	}
}

func TestParseAccessTokenRejectsWrongAudience(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Audience = "service_role"
	token, err := MintAccessToken(cfg, time.Now(), time.Minute, AccessTokenPayload{Subject: "user-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(testAuthConfig(), token); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testAuthConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), time.Minute, AccessTokenPayload{Subject: "user-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestEffectiveRolePrefersAppMetadata(t *testing.T) {
	claims := AccessTokenClaims{Role: "authenticated", AppMetadata: AppMetadata{Role: "admin"}}
	if got := claims.EffectiveRole(); got != "admin" {
		t.Fatalf("expected admin, got %q", got)
	}

	claims = AccessTokenClaims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}
	if got := claims.EffectiveRole(); got != "admin" {
		t.Fatalf("expected top-level role fallback, got %q", got)
	}
}

func TestReturnTokenBindsSession(t *testing.T) {
	now := time.Now()
	token, err := MintReturnToken("return-secret", now, time.Hour, "s1")
	if err != nil {
		t.Fatalf("mint return token: %v", err)
	}
	if err := VerifyReturnToken("return-secret", token, "s1"); err != nil {
		t.Fatalf("expected token to verify: %v", err)
	}
	if err := VerifyReturnToken("return-secret", token, "s2"); err == nil {
		t.Fatal("expected token for another session to fail")
	}
	if err := VerifyReturnToken("other-secret", token, "s1"); err == nil {
		t.Fatal("expected wrong secret to fail")
	}

	expired, err := MintReturnToken("return-secret", now.Add(-2*time.Hour), time.Hour, "s1")
	if err != nil {
		t.Fatalf("mint expired token: %v", err)
	}
	if err := VerifyReturnToken("return-secret", expired, "s1"); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestReturnTokenIsNotAnAccessToken(t *testing.T) {
	cfg := testAuthConfig()
	token, err := MintReturnToken(cfg.JWTSecret, time.Now(), time.Hour, "s1")
	if err != nil {
		t.Fatalf("mint return token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected return token to be rejected as an access token")
	}
}
