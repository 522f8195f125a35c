// ABOUTME: Decoding of incoming JSON envelopes into typed server messages
// ABOUTME: Unknown types and malformed payloads fail explicitly
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownMessage is returned for envelope types this client does not consume
	ErrUnknownMessage = errors.New("unknown message type")

	// ErrMalformedMessage is returned when an envelope or its payload cannot be decoded
	ErrMalformedMessage = errors.New("malformed message")
)

// ServerMessage is one of the message kinds a server sends to a player.
// The set is closed: ServerHello, ServerTime, StreamStart, StreamClear,
// StreamEnd, GroupUpdate, ServerState and ServerCommand.
type ServerMessage interface {
	serverMessage()
}

func (ServerHello) serverMessage()   {}
func (ServerTime) serverMessage()    {}
func (StreamStart) serverMessage()   {}
func (StreamClear) serverMessage()   {}
func (StreamEnd) serverMessage()     {}
func (GroupUpdate) serverMessage()   {}
func (ServerState) serverMessage()   {}
func (ServerCommand) serverMessage() {}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeServerMessage parses a text frame into its typed message
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	payload := env.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	switch env.Type {
	case TypeServerHello:
		return decodeAs[ServerHello](env.Type, payload)
	case TypeServerTime:
		return decodeServerTime(payload)
	case TypeStreamStart:
		return decodeStreamStart(payload)
	case TypeStreamClear:
		return decodeAs[StreamClear](env.Type, payload)
	case TypeStreamEnd:
		return decodeAs[StreamEnd](env.Type, payload)
	case TypeGroupUpdate:
		return decodeAs[GroupUpdate](env.Type, payload)
	case TypeServerState:
		return decodeAs[ServerState](env.Type, payload)
	case TypeServerCommand:
		return decodeAs[ServerCommand](env.Type, payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, env.Type)
	}
}

func decodeAs[T ServerMessage](msgType string, payload json.RawMessage) (ServerMessage, error) {
	var msg T
	if err := decodePayload(msgType, payload, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func decodePayload(msgType string, payload json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedMessage, msgType, err)
	}
	return nil
}

func decodeServerTime(payload json.RawMessage) (ServerMessage, error) {
	var raw struct {
		ClientTransmitted *int64 `json:"client_transmitted"`
		ServerReceived    *int64 `json:"server_received"`
		ServerTransmitted *int64 `json:"server_transmitted"`
	}
	if err := decodePayload(TypeServerTime, payload, &raw); err != nil {
		return nil, err
	}
	if raw.ClientTransmitted == nil || raw.ServerReceived == nil || raw.ServerTransmitted == nil {
		return nil, fmt.Errorf("%w: %s: missing timestamp", ErrMalformedMessage, TypeServerTime)
	}
	return ServerTime{
		ClientTransmitted: *raw.ClientTransmitted,
		ServerReceived:    *raw.ServerReceived,
		ServerTransmitted: *raw.ServerTransmitted,
	}, nil
}

func decodeStreamStart(payload json.RawMessage) (ServerMessage, error) {
	var msg StreamStart
	if err := decodePayload(TypeStreamStart, payload, &msg); err != nil {
		return nil, err
	}
	p := msg.Player
	if p == nil {
		return nil, fmt.Errorf("%w: %s: no player object", ErrMalformedMessage, TypeStreamStart)
	}
	if p.Codec == "" || p.SampleRate <= 0 || p.Channels <= 0 || p.BitDepth <= 0 {
		return nil, fmt.Errorf("%w: %s: incomplete format %s %dHz %dch %dbit",
			ErrMalformedMessage, TypeStreamStart, p.Codec, p.SampleRate, p.Channels, p.BitDepth)
	}
	return msg, nil
}

// Encode wraps a payload in a typed envelope
func Encode(msgType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msgType, err)
	}
	return data, nil
}
