package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// checkoutReturnAudience keeps return tokens from being accepted as access
// tokens and the other way round.
const checkoutReturnAudience = "checkout_return"

// MintReturnToken signs sessionID so the payment processor's return request can
// prove which cart it paid for.
func MintReturnToken(secret string, now time.Time, ttl time.Duration, sessionID string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("return secret is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Audience:  jwt.ClaimStrings{checkoutReturnAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing return token: %w", err)
	}
	return signed, nil
}

// VerifyReturnToken checks that token was minted for sessionID and has not expired.
func VerifyReturnToken(secret, token, sessionID string) error {
	if secret == "" {
		return fmt.Errorf("return secret is required")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(checkoutReturnAudience),
	)
	if err != nil {
		return err
	}
	if claims.Subject != sessionID {
		return fmt.Errorf("return token issued for another session")
	}
	return nil
}
