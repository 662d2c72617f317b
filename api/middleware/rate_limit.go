package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RateCounter is a fixed-window counter keyed by scope.
type RateCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy caps requests per client address, per cart session and per
// customer contact (email or phone in the JSON body). A zero limit turns that
// dimension off.
type RateLimitPolicy struct {
	Name       string
	Window     time.Duration
	PerIP      int
	PerSession int
	PerContact int
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerSession > 0 || p.PerContact > 0)
}

func (p RateLimitPolicy) scope(dimension, value string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "default"
	}
	return name + ":" + dimension + ":" + value
}

type rateCheck struct {
	dimension string
	value     string
	limit     int
}

// RateLimit rejects requests once any enabled dimension of policy is exhausted.
// Counter failures fail closed with a dependency error.
func RateLimit(policy RateLimitPolicy, counter RateCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || counter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			checks := make([]rateCheck, 0, 3)
			if policy.PerIP > 0 {
				checks = append(checks, rateCheck{"ip", clientIP(r), policy.PerIP})
			}
			if policy.PerSession > 0 {
				checks = append(checks, rateCheck{"session", chi.URLParam(r, "sessionId"), policy.PerSession})
			}
			if policy.PerContact > 0 {
				contact, err := peekContact(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				if contact != "" {
					checks = append(checks, rateCheck{"contact", hashValue(contact), policy.PerContact})
				}
			}

			for _, c := range checks {
				if c.value == "" {
					continue
				}
				allowed, count, err := counter.FixedWindowAllow(ctx, policy.scope(c.dimension, c.value), int64(c.limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectRateLimited(ctx, logg, w, policy, c, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, c rateCheck, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    policy.Name,
			"dimension": c.dimension,
			"attempts":  count,
			"limit":     c.limit,
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// peekContact reads the body to find the customer's email or phone and
// restores it for the next handler.
func peekContact(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes+1))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	if len(body) > validators.MaxBodyBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "request body too large")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return "", nil
	}
	if email := strings.ToLower(strings.TrimSpace(payload.Email)); email != "" {
		return email, nil
	}
	return phoneDigits(payload.Phone), nil
}

func phoneDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
