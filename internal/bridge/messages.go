// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package bridge maps each client's socket onto session operations and
// maps session events back onto named client messages.
package bridge

// Client-facing message type names (§6, normative).
const (
	clientMsgInitSession = "initSession"
	clientMsgAudioInput  = "audioInput"
	clientMsgStopAudio   = "stopAudio"
)

// clientMessage is the JSON envelope for text frames sent by the client.
// audioInput may instead arrive as a raw binary frame, handled separately.
type clientMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
	Audio  string `json:"audio,omitempty"` // base64, used only for JSON-framed audioInput
}

// Gateway-to-client message type names (§6, normative).
const (
	serverMsgSessionInitialized = "sessionInitialized"
	serverMsgContentStart       = "contentStart"
	serverMsgTextOutput         = "textOutput"
	serverMsgAudioOutput        = "audioOutput"
	serverMsgToolUse            = "toolUse"
	serverMsgToolResult         = "toolResult"
	serverMsgContentEnd         = "contentEnd"
	serverMsgStreamComplete     = "streamComplete"
	serverMsgError              = "error"
)

// serverMessage is the JSON envelope for every message the bridge writes
// back to the client socket.
type serverMessage struct {
	Type       string      `json:"type"`
	Success    *bool       `json:"success,omitempty"`
	SessionID  string      `json:"sessionId,omitempty"`
	Message    string      `json:"message,omitempty"`
	Details    string      `json:"details,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
}
