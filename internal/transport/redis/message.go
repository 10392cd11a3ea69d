package redis

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-direct/internal/discovery"
)

var ErrUnknownAction = errors.New("unknown action")

// Message is the wire form of a discovery event.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Encode(event discovery.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := Message{
		Action:  event.Action(),
		Payload: payload,
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return messageBytes, nil
}

func Decode(data []byte) (discovery.Event, error) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	switch message.Action {
	case discovery.ActionStateChanged:
		return decodePayload[discovery.RadioStateChanged](message)
	case discovery.ActionPeersChanged:
		return decodePayload[discovery.PeerListChanged](message)
	case discovery.ActionPeersAvailable:
		return decodePayload[discovery.PeersAvailable](message)
	case discovery.ActionConnectionChanged:
		return decodePayload[discovery.ConnectionChanged](message)
	case discovery.ActionConnectionInfo:
		return decodePayload[discovery.ConnectionInfoAvailable](message)
	case discovery.ActionThisDeviceChanged:
		return decodePayload[discovery.ThisDeviceChanged](message)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, message.Action)
	}
}

func decodePayload[T discovery.Event](message Message) (discovery.Event, error) {
	var event T

	if len(message.Payload) == 0 {
		return event, nil
	}

	if err := json.Unmarshal(message.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", message.Action, err)
	}

	return event, nil
}
