package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// SchemaVersion is the message schema spoken by this service. Messages without a
// version are read as version 1.
const SchemaVersion = 1

var validate = validator.New()

// Message is the payload exchanged with the host page.
type Message struct {
	Type    enums.BridgeMessageType `json:"type" validate:"required"`
	Version int                     `json:"version,omitempty" validate:"gte=0"`
	Items   []MessageItem           `json:"items,omitempty" validate:"omitempty,dive"`
	Totals  *cart.Totals            `json:"totals,omitempty"`
}

// MessageItem is a cart line as the host page describes it.
type MessageItem struct {
	ID       string           `json:"id" validate:"required,max=200"`
	Name     string           `json:"name" validate:"required,max=500"`
	Price    *decimal.Decimal `json:"price" validate:"required"`
	Quantity *int             `json:"quantity" validate:"required"`
	Kind     enums.ItemKind   `json:"kind,omitempty"`
}

var (
	errUnknownType  = errors.New("unknown message type")
	errVersion      = errors.New("unsupported message version")
	errMissingItems = errors.New("cart update without items")
	errItemValue    = errors.New("invalid item value")
)

// DecodeMessage parses and validates a host message. Unknown fields are ignored.
func DecodeMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if err := validate.Struct(msg); err != nil {
		return Message{}, fmt.Errorf("validate message: %w", err)
	}
	if !msg.Type.IsValid() {
		return Message{}, errUnknownType
	}
	if msg.Version == 0 {
		msg.Version = SchemaVersion
	}
	if msg.Version > SchemaVersion {
		return Message{}, errVersion
	}
	if msg.Type == enums.BridgeMessageCartUpdate {
		if msg.Items == nil {
			return Message{}, errMissingItems
		}
		for _, item := range msg.Items {
			if item.Price.IsNegative() || *item.Quantity < 0 {
				return Message{}, errItemValue
			}
			if item.Kind != "" && !item.Kind.IsValid() {
				return Message{}, errItemValue
			}
		}
	}
	return msg, nil
}

// CartItems converts the message's items into cart lines.
func (m Message) CartItems() []cart.Item {
	out := make([]cart.Item, 0, len(m.Items))
	for _, item := range m.Items {
		out = append(out, cart.Item{
			ID:       item.ID,
			Name:     item.Name,
			Price:    *item.Price,
			Quantity: *item.Quantity,
			Kind:     item.Kind,
		})
	}
	return out
}

func readyMessage() Message {
	return Message{Type: enums.BridgeMessageCartReady, Version: SchemaVersion}
}

func syncMessage(items []cart.Item, totals cart.Totals) Message {
	msg := Message{
		Type:    enums.BridgeMessageCartSync,
		Version: SchemaVersion,
		Items:   make([]MessageItem, 0, len(items)),
		Totals:  &totals,
	}
	for _, item := range items {
		price := item.Price
		quantity := item.Quantity
		msg.Items = append(msg.Items, MessageItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    &price,
			Quantity: &quantity,
			Kind:     item.Kind,
		})
	}
	return msg
}

// envelope carries an inbound payload across the broker together with the origin
// it was received from. Data is kept as bytes so malformed payloads still travel
// and are rejected at the receiving end.
type envelope struct {
	Origin string `json:"origin"`
	Data   []byte `json:"data"`
}
