// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncode_WrapsPayloadUnderSingleKindKey(t *testing.T) {
	out, err := Encode(OutboundEvent{
		Kind: KindSessionStart,
		Payload: SessionStart{
			InferenceConfiguration: InferenceConfiguration{MaxTokens: 1024, TopP: 0.9, Temperature: 0.7},
		},
	})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("encoded frame is not valid JSON: %v", err)
	}
	inner, ok := raw["event"]
	if !ok {
		t.Fatalf("encoded frame missing top-level %q key: %s", "event", out)
	}
	if len(inner) != 1 {
		t.Fatalf("expected exactly one event kind, got %d: %s", len(inner), out)
	}
	if _, ok := inner["sessionStart"]; !ok {
		t.Fatalf("expected %q key, got %s", "sessionStart", out)
	}
}

func TestEncode_AudioInputBase64Content(t *testing.T) {
	out, err := Encode(OutboundEvent{
		Kind: KindAudioInput,
		Payload: AudioInput{
			PromptName:  "p1",
			ContentName: "c1",
			Content:     "AAAAAA==",
		},
	})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(string(out), `"content":"AAAAAA=="`) {
		t.Fatalf("expected base64 content verbatim in frame, got %s", out)
	}
}

func TestDecode_KnownKind(t *testing.T) {
	frame := []byte(`{"event":{"textOutput":{"promptName":"p1","contentName":"c1","content":"hi"}}}`)
	evt, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if evt.Kind != KindTextOutput {
		t.Fatalf("expected kind %q, got %q", KindTextOutput, evt.Kind)
	}

	var payload TextOutput
	if err := As(evt, &payload); err != nil {
		t.Fatalf("As returned error: %v", err)
	}
	if payload.Content != "hi" {
		t.Fatalf("expected content %q, got %q", "hi", payload.Content)
	}
}

func TestDecode_UnknownKindPreservesRawName(t *testing.T) {
	frame := []byte(`{"event":{"somethingNew":{"foo":"bar"}}}`)
	evt, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if evt.Kind != KindUnknown {
		t.Fatalf("expected KindUnknown, got %q", evt.Kind)
	}
	if evt.RawKind != "somethingNew" {
		t.Fatalf("expected raw kind %q, got %q", "somethingNew", evt.RawKind)
	}
}

func TestDecode_RejectsMultipleEventKeys(t *testing.T) {
	frame := []byte(`{"event":{"textOutput":{},"audioOutput":{}}}`)
	if _, err := Decode(frame); err == nil {
		t.Fatalf("expected error for frame with multiple event keys")
	}
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestInboundEventKinds(t *testing.T) {
	cases := []struct {
		kind    string
		isKnown bool
	}{
		{"contentStart", true},
		{"textOutput", true},
		{"audioOutput", true},
		{"toolUse", true},
		{"contentEnd", true},
		{"modelStreamErrorException", true},
		{"internalServerException", true},
		{"sessionStart", false},
		{"whatever", false},
	}
	for _, c := range cases {
		frame := []byte(`{"event":{"` + c.kind + `":{}}}`)
		evt, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode(%s) returned error: %v", c.kind, err)
		}
		gotKnown := evt.Kind != KindUnknown
		if gotKnown != c.isKnown {
			t.Errorf("kind %s: expected known=%v, got known=%v", c.kind, c.isKnown, gotKnown)
		}
	}
}
