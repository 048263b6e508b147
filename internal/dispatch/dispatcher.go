// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package dispatch routes decoded inbound events to per-session handlers
// and performs tool-use correlation.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/session"
)

// KindToolFailure is a local, non-wire kind synthesized when a tool
// invocation fails, so bridges can register a handler for it the same
// way they register handlers for real upstream kinds.
const KindToolFailure protocol.Kind = "toolFailure"

// KindToolResult is a local, non-wire kind synthesized when a tool
// invocation succeeds, carrying the same result enqueued upstream so a
// bridge can forward it on to the client.
const KindToolResult protocol.Kind = "toolResult"

// ToolResultNotice is the payload delivered alongside KindToolResult.
type ToolResultNotice struct {
	ToolUseID string          `json:"toolUseId"`
	ToolName  string          `json:"toolName"`
	Result    json.RawMessage `json:"result"`
}

// ToolInvoker executes a correlated tool call and enqueues its result.
// Implemented by *tool.Invoker; declared here to avoid an import cycle.
type ToolInvoker interface {
	Invoke(ctx context.Context, s *session.Session, toolUseID, toolName, argsJSON string) (json.RawMessage, error)
}

// Dispatcher routes inbound events to a session's registered handlers.
type Dispatcher struct {
	logger  logging.Logger
	invoker ToolInvoker
}

// New builds a Dispatcher.
func New(logger logging.Logger, invoker ToolInvoker) *Dispatcher {
	return &Dispatcher{logger: logger, invoker: invoker}
}

// Dispatch handles one decoded inbound event for s: it performs tool-use
// correlation, invokes the kind-specific handler (if any), then the
// catch-all handler (if any). Handler panics are recovered and logged;
// they never interrupt the response loop.
func (d *Dispatcher) Dispatch(ctx context.Context, s *session.Session, evt protocol.InboundEvent) {
	s.Touch()

	switch evt.Kind {
	case protocol.KindToolUse:
		d.captureToolUse(s, evt)
	case protocol.KindContentEnd:
		d.maybeInvokeTool(ctx, s, evt)
	}

	d.invokeHandler(s, evt.Kind, evt)
	d.invokeHandler(s, session.HandlerAny, evt)
}

func (d *Dispatcher) captureToolUse(s *session.Session, evt protocol.InboundEvent) {
	var tu protocol.ToolUse
	if err := protocol.As(evt, &tu); err != nil {
		d.logger.Errorw("failed to decode toolUse event", "session", s.ID, "error", err)
		return
	}
	s.SetPendingToolUse(tu.ToolUseID, tu.ToolName, tu.Content)
}

func (d *Dispatcher) maybeInvokeTool(ctx context.Context, s *session.Session, evt protocol.InboundEvent) {
	var ce protocol.InboundContentEnd
	if err := protocol.As(evt, &ce); err != nil {
		d.logger.Errorw("failed to decode contentEnd event", "session", s.ID, "error", err)
		return
	}
	if ce.Type != protocol.ContentTypeTool {
		return
	}

	toolUseID, toolName, content, ok := s.TakePendingToolUse()
	if !ok {
		return
	}

	go func() {
		result, err := d.invoker.Invoke(ctx, s, toolUseID, toolName, content)
		if err != nil {
			d.logger.Errorw("tool round-trip failed", "session", s.ID, "tool", toolName, "error", err)
			d.invokeHandler(s, KindToolFailure, protocol.InboundEvent{
				Kind:    KindToolFailure,
				RawKind: string(KindToolFailure),
			})
			return
		}

		notice := ToolResultNotice{ToolUseID: toolUseID, ToolName: toolName, Result: result}
		raw, marshalErr := json.Marshal(notice)
		if marshalErr != nil {
			d.logger.Errorw("failed to marshal tool result notice", "session", s.ID, "tool", toolName, "error", marshalErr)
			return
		}
		d.invokeHandler(s, KindToolResult, protocol.InboundEvent{
			Kind:       KindToolResult,
			RawKind:    string(KindToolResult),
			RawPayload: raw,
		})
	}()
}

func (d *Dispatcher) invokeHandler(s *session.Session, kind protocol.Kind, evt protocol.InboundEvent) {
	h, ok := s.HandlerFor(kind)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("handler panicked, suppressing", "session", s.ID, "kind", kind, "recovered", r)
		}
	}()
	h(s, evt)
}
