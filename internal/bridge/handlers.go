// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package bridge

import (
	"github.com/rapidaai/voicegateway/internal/dispatch"
	"github.com/rapidaai/voicegateway/internal/lifecycle"
	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/session"
	"github.com/rapidaai/voicegateway/internal/stream"
)

// sendFunc writes one message back to the client socket.
type sendFunc func(serverMessage)

// registerHandlers installs the default inbound handlers for s: every
// kind named in §4.8's session-event table is forwarded verbatim to the
// client, plus the gateway's own local terminal-condition kinds.
func registerHandlers(s *session.Session, send sendFunc) {
	s.RegisterHandler(protocol.KindContentStart, func(sess *session.Session, e protocol.InboundEvent) {
		var p protocol.InboundContentStart
		_ = protocol.As(e, &p)
		send(serverMessage{Type: serverMsgContentStart, Payload: p})
	})

	s.RegisterHandler(protocol.KindTextOutput, func(sess *session.Session, e protocol.InboundEvent) {
		var p protocol.TextOutput
		_ = protocol.As(e, &p)
		send(serverMessage{Type: serverMsgTextOutput, Payload: p})
	})

	s.RegisterHandler(protocol.KindAudioOutput, func(sess *session.Session, e protocol.InboundEvent) {
		var p protocol.AudioOutput
		_ = protocol.As(e, &p)
		send(serverMessage{Type: serverMsgAudioOutput, Payload: p})
	})

	s.RegisterHandler(protocol.KindToolUse, func(sess *session.Session, e protocol.InboundEvent) {
		var p protocol.ToolUse
		_ = protocol.As(e, &p)
		send(serverMessage{Type: serverMsgToolUse, Payload: p})
	})

	s.RegisterHandler(protocol.KindContentEnd, func(sess *session.Session, e protocol.InboundEvent) {
		var p protocol.InboundContentEnd
		_ = protocol.As(e, &p)
		send(serverMessage{Type: serverMsgContentEnd, Payload: p})
	})

	s.RegisterHandler(stream.KindStreamComplete, func(sess *session.Session, e protocol.InboundEvent) {
		send(serverMessage{Type: serverMsgStreamComplete})
	})

	s.RegisterHandler(stream.KindDriverError, func(sess *session.Session, e protocol.InboundEvent) {
		// Terminal ordering rule (§9): when both error and streamComplete
		// would fire, error is sent first.
		send(serverMessage{Type: serverMsgError, Message: "upstream stream error"})
		send(serverMessage{Type: serverMsgStreamComplete})
	})

	s.RegisterHandler(lifecycle.KindIdleTimeout, func(sess *session.Session, e protocol.InboundEvent) {
		send(serverMessage{Type: serverMsgError, Message: "session closed due to inactivity"})
		send(serverMessage{Type: serverMsgStreamComplete})
	})

	s.RegisterHandler(dispatch.KindToolFailure, func(sess *session.Session, e protocol.InboundEvent) {
		send(serverMessage{Type: serverMsgError, Message: "tool invocation failed"})
	})

	s.RegisterHandler(dispatch.KindToolResult, func(sess *session.Session, e protocol.InboundEvent) {
		var p dispatch.ToolResultNotice
		_ = protocol.As(e, &p)
		send(serverMessage{Type: serverMsgToolResult, Payload: p})
	})

	s.RegisterHandler(protocol.KindModelStreamErrorException, func(sess *session.Session, e protocol.InboundEvent) {
		var p protocol.ModelStreamErrorException
		_ = protocol.As(e, &p)
		send(serverMessage{Type: serverMsgError, Message: p.Message})
	})

	s.RegisterHandler(protocol.KindInternalServerException, func(sess *session.Session, e protocol.InboundEvent) {
		var p protocol.InternalServerException
		_ = protocol.As(e, &p)
		send(serverMessage{Type: serverMsgError, Message: p.Message})
	})
}
