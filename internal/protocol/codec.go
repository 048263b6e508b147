// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind names the single populated field of an upstream event envelope.
type Kind string

const (
	KindSessionStart   Kind = "sessionStart"
	KindPromptStart    Kind = "promptStart"
	KindContentStart   Kind = "contentStart"
	KindTextInput      Kind = "textInput"
	KindAudioInput     Kind = "audioInput"
	KindToolResult     Kind = "toolResult"
	KindContentEnd     Kind = "contentEnd"
	KindPromptEnd      Kind = "promptEnd"
	KindSessionEnd     Kind = "sessionEnd"
	KindTextOutput     Kind = "textOutput"
	KindAudioOutput    Kind = "audioOutput"
	KindToolUse        Kind = "toolUse"

	KindModelStreamErrorException Kind = "modelStreamErrorException"
	KindInternalServerException   Kind = "internalServerException"
	KindUnknown                   Kind = "unknown"
)

// OutboundEvent is a single framed event destined for the upstream request
// body. Exactly one payload field is meaningful, named by Kind.
type OutboundEvent struct {
	Kind    Kind
	Payload interface{}
}

// envelope is the wire shape: {"event": {"<kind>": {...}}}.
type envelope struct {
	Event map[string]json.RawMessage `json:"event"`
}

// Encode serializes an OutboundEvent as a single JSON frame.
func Encode(e OutboundEvent) ([]byte, error) {
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Kind, err)
	}
	wrapped := map[string]json.RawMessage{string(e.Kind): body}
	out, err := json.Marshal(struct {
		Event map[string]json.RawMessage `json:"event"`
	}{Event: wrapped})
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", e.Kind, err)
	}
	return out, nil
}

// InboundEvent is a single decoded frame received from the upstream
// response body.
type InboundEvent struct {
	Kind       Kind
	RawKind    string
	RawPayload json.RawMessage
}

// Decode parses a single JSON frame into an InboundEvent. Kinds the codec
// does not recognize are preserved as KindUnknown carrying the literal
// upstream kind name, so the dispatcher can still route on it or log it.
func Decode(data []byte) (InboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return InboundEvent{}, fmt.Errorf("decode frame: %w", err)
	}
	if len(env.Event) != 1 {
		return InboundEvent{}, fmt.Errorf("decode frame: expected exactly one event key, got %d", len(env.Event))
	}
	for k, v := range env.Event {
		kind := Kind(k)
		if !knownInboundKind(kind) {
			return InboundEvent{Kind: KindUnknown, RawKind: k, RawPayload: v}, nil
		}
		return InboundEvent{Kind: kind, RawKind: k, RawPayload: v}, nil
	}
	return InboundEvent{}, fmt.Errorf("decode frame: unreachable")
}

func knownInboundKind(k Kind) bool {
	switch k {
	case KindContentStart, KindTextOutput, KindAudioOutput, KindToolUse, KindContentEnd,
		KindModelStreamErrorException, KindInternalServerException:
		return true
	default:
		return false
	}
}

// As unmarshals an InboundEvent's raw payload into the given destination.
func As(e InboundEvent, dest interface{}) error {
	if e.RawPayload == nil {
		return fmt.Errorf("decode %s: empty payload", e.RawKind)
	}
	if err := json.Unmarshal(e.RawPayload, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.RawKind, err)
	}
	return nil
}
