package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RequireRole admits callers whose role, as set by Auth, matches role.
// An empty role locks the group entirely.
func RequireRole(role string, logg *logger.Logger) func(http.Handler) http.Handler {
	want := strings.TrimSpace(role)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := RoleFromContext(r.Context())
			if want == "" || !strings.EqualFold(got, want) {
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{"actor_role": got, "required_role": want})
					logg.Warn(ctx, "auth.role_denied")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
