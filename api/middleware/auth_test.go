package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func adminGate(t *testing.T, buf *bytes.Buffer) (http.Handler, *Actor) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "auth-test", Output: buf})
	cfg := config.AuthConfig{JWTSecret: "secret", Audience: "authenticated", AdminRole: "admin"}
	seen := &Actor{}
	h := Auth(cfg, logg)(RequireRole(cfg.AdminRole, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		*seen = actor
		w.WriteHeader(http.StatusNoContent)
	})))
	return h, seen
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	cfg := config.AuthConfig{JWTSecret: "secret", Audience: "authenticated"}
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), time.Minute, pkgAuth.AccessTokenPayload{Subject: "user-7", Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthAdmitsAdmin(t *testing.T) {
	var buf bytes.Buffer
	h, seen := adminGate(t, &buf)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", bearer(t, "admin"))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, Actor{UserID: "user-7", Role: "admin"}, *seen)
}

func TestAuthRejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "wrong role", header: "customer", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h, _ := adminGate(t, &buf)
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			switch {
			case tt.header == "customer":
				req.Header.Set("Authorization", bearer(t, "customer"))
			case tt.header != "":
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)
			assert.Equal(t, tt.status, resp.Code)
			if tt.status == http.StatusForbidden {
				assert.Contains(t, buf.String(), "auth.role_denied")
			}
		})
	}
}

func TestRequireRoleWithEmptyRoleLocksGroup(t *testing.T) {
	h := RequireRole("", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(WithActor(req.Context(), Actor{UserID: "u", Role: ""}))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestActorFromContextWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ActorFromContext(req.Context())
	assert.False(t, ok)
	assert.Empty(t, UserIDFromContext(req.Context()))
}
