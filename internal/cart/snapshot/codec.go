// Package snapshot persists cart contents so a session's cart survives reloads and
// restarts. Writes go to every configured tier; reads take the first tier holding
// a usable snapshot.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/cart"
)

// ErrNotFound is returned by a tier that holds no snapshot for the session.
var ErrNotFound = errors.New("snapshot not found")

// Encode serializes items as a JSON array.
func Encode(items []cart.Item) ([]byte, error) {
	if items == nil {
		items = []cart.Item{}
	}
	return json.Marshal(items)
}

type envelope struct {
	Items []cart.Item `json:"items"`
}

// Decode parses a stored snapshot. It accepts a bare item array or an object with
// an "items" field. Items with a negative price are discarded and the rest are
// normalized. Anything that is not one of those shapes is an error.
func Decode(raw []byte) ([]cart.Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("decode snapshot: empty payload")
	}

	var items []cart.Item
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		items = env.Items
	default:
		return nil, fmt.Errorf("decode snapshot: unexpected payload")
	}

	kept := items[:0]
	for _, item := range items {
		if item.Price.IsNegative() {
			continue
		}
		kept = append(kept, item)
	}
	return cart.Normalize(kept), nil
}
