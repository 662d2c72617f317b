package enums

import "fmt"

// BridgeMessageType is the discriminator carried by every cross-context message.
type BridgeMessageType string

const (
	BridgeMessageCartUpdate BridgeMessageType = "cart.update"
	BridgeMessageCartReady  BridgeMessageType = "cart.ready"
	BridgeMessageCartSync   BridgeMessageType = "cart.sync"
)

var validBridgeMessageTypes = []BridgeMessageType{
	BridgeMessageCartUpdate,
	BridgeMessageCartReady,
	BridgeMessageCartSync,
}

// String implements fmt.Stringer.
func (t BridgeMessageType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known BridgeMessageType.
func (t BridgeMessageType) IsValid() bool {
	for _, candidate := range validBridgeMessageTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBridgeMessageType converts raw input into a BridgeMessageType.
func ParseBridgeMessageType(value string) (BridgeMessageType, error) {
	for _, candidate := range validBridgeMessageTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bridge message type %q", value)
}
