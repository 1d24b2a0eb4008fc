package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope frames one event on a websocket. Inbound and outbound frames share
// the same shape.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals payload and frames it as event.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}

	return frame, nil
}

// Decode splits a raw frame into its event name and payload.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("invalid envelope: missing event")
	}
	return env, nil
}
