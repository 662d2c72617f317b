package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ParseLimit reads ?limit=, returning def when absent and rejecting values
// outside 1..max.
func ParseLimit(r *http.Request, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit").
			WithDetails(map[string]any{"limit": raw, "min": 1, "max": max})
	}
	return limit, nil
}
