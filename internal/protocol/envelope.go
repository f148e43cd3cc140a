// Package protocol defines the JSON messages exchanged with duel clients over a
// WebSocket, and the per-seat sanitization of outgoing deltas.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types: server to client.
const (
	MsgDuelWelcome       = "duelWelcome"
	MsgDuelMutated       = "duelMutated"
	MsgDuelRequestAck    = "duelRequestAck"
	MsgDuelRequestFailed = "duelRequestFailed"
)

// Message types: client to server.
const (
	MsgDuelEndTurn            = "duelEndTurn"
	MsgDuelUseCardProposition = "duelUseCardProposition"
	MsgDuelUseUnitProposition = "duelUseUnitProposition"
)

var (
	// ErrMalformed is returned for frames that are not valid envelopes or payloads.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType is returned for envelopes with an unsupported type.
	ErrUnknownType = errors.New("unknown message type")
)

// Envelope is the wrapper of every frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope creates an envelope with a JSON-encoded payload.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: data}, nil
}

// Encode marshals a message into a frame.
func Encode(typ string, payload any) ([]byte, error) {
	env, err := NewEnvelope(typ, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses a frame into its envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}
