package bridge

import "strings"

// OriginPolicy decides which host origins may drive a cart. An empty list or a
// "*" entry accepts any origin.
type OriginPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	origins  []string
}

func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allowed: map[string]struct{}{}}
	for _, raw := range origins {
		origin := normalizeOrigin(raw)
		if origin == "" {
			continue
		}
		if origin == "*" {
			p.allowAll = true
			continue
		}
		if _, dup := p.allowed[origin]; dup {
			continue
		}
		p.allowed[origin] = struct{}{}
		p.origins = append(p.origins, origin)
	}
	if len(p.allowed) == 0 {
		p.allowAll = true
	}
	return p
}

func (p OriginPolicy) Allows(origin string) bool {
	if p.allowAll {
		return true
	}
	_, ok := p.allowed[normalizeOrigin(origin)]
	return ok
}

// Origins lists the explicit origins, or "*" when every origin is accepted.
func (p OriginPolicy) Origins() []string {
	if p.allowAll {
		return []string{"*"}
	}
	out := make([]string, len(p.origins))
	copy(out, p.origins)
	return out
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
}
