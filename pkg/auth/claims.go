package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Subject string
	Email   string
	Role    string
}

// AppMetadata is the server-controlled metadata block issued by the hosted auth
// service. Its role wins over the top-level role claim.
type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// AccessTokenClaims represents the JWT issued by the hosted auth service.
type AccessTokenClaims struct {
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// EffectiveRole returns the application role carried by the token.
func (c AccessTokenClaims) EffectiveRole() string {
	if role := strings.TrimSpace(c.AppMetadata.Role); role != "" {
		return role
	}
	return strings.TrimSpace(c.Role)
}
