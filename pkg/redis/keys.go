package redis

import "strings"

const keyNamespace = "sf"

// key joins non-empty parts under the storefront namespace: sf:part:part.
func key(parts ...string) string {
	b := strings.Builder{}
	b.WriteString(keyNamespace)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key("rate_limit", scope)
}

// CartSnapshotKey holds the serialized cart of a session.
func (c *Client) CartSnapshotKey(sessionID string) string {
	return key("cart", sessionID)
}

// AbandonedCheckoutsKey is a Redis list holding one JSON abandoned checkout per element.
func (c *Client) AbandonedCheckoutsKey() string {
	return key("abandoned_checkouts")
}

// EmbedChannel is the pub/sub channel for one direction of a session's
// host-page messages.
func (c *Client) EmbedChannel(sessionID, direction string) string {
	return key("embed", sessionID, direction)
}
