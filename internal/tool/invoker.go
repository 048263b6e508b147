// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/session"
)

// Invoker executes the closed set of built-in tools and pushes the
// result back into a session's outbound queue as a TOOL content block.
// It never blocks the Remote Stream Driver: callers are expected to run
// Invoke in its own goroutine.
type Invoker struct {
	logger      logging.Logger
	http        *resty.Client
	weatherBase string
}

// NewInvoker builds an Invoker. weatherBase is the open-meteo endpoint
// root, e.g. "https://api.open-meteo.com".
func NewInvoker(logger logging.Logger, weatherBase string) *Invoker {
	return &Invoker{
		logger:      logger,
		http:        resty.New(),
		weatherBase: weatherBase,
	}
}

// Invoke runs toolName with the given JSON arguments and enqueues the
// TOOL content-block triplet (contentStart/toolResult/contentEnd) into
// the session's outbound queue. It returns the result it enqueued (so
// callers can forward the same payload on to the client) alongside a
// non-nil error for both unsupported tools and tool execution failures;
// in both cases a toolResult carrying the error is still enqueued so the
// upstream round-trip contract (every toolUse gets a toolResult) holds.
func (inv *Invoker) Invoke(ctx context.Context, s *session.Session, toolUseID, toolName, argsJSON string) (json.RawMessage, error) {
	result, err := inv.execute(ctx, toolName, argsJSON)
	if err != nil {
		inv.logger.Errorw("tool invocation failed", "tool", toolName, "toolUseId", toolUseID, "error", err)
		result, _ = json.Marshal(map[string]string{"error": err.Error()})
	}

	promptName := s.PromptName()
	contentName := uuid.NewString()

	if enqErr := s.Enqueue(protocol.OutboundEvent{
		Kind: protocol.KindContentStart,
		Payload: protocol.ContentStart{
			PromptName:  promptName,
			ContentName: contentName,
			Type:        protocol.ContentTypeTool,
			Interactive: false,
			Role:        protocol.RoleTool,
			ToolResultInputConfiguration: &protocol.ToolResultInputConfiguration{
				ToolUseID: toolUseID,
				Type:      "TEXT",
			},
		},
	}); enqErr != nil {
		return result, fmt.Errorf("enqueue tool contentStart: %w", enqErr)
	}
	s.MarkContentOpen(contentName, promptName)

	if enqErr := s.Enqueue(protocol.OutboundEvent{
		Kind: protocol.KindToolResult,
		Payload: protocol.ToolResult{
			PromptName:  promptName,
			ContentName: contentName,
			Content:     string(result),
		},
	}); enqErr != nil {
		return result, fmt.Errorf("enqueue toolResult: %w", enqErr)
	}

	if enqErr := s.Enqueue(protocol.OutboundEvent{
		Kind:    protocol.KindContentEnd,
		Payload: protocol.ContentEnd{PromptName: promptName, ContentName: contentName},
	}); enqErr != nil {
		return result, fmt.Errorf("enqueue tool contentEnd: %w", enqErr)
	}
	s.MarkContentClosed(contentName)

	return result, err
}

func (inv *Invoker) execute(ctx context.Context, toolName, argsJSON string) (json.RawMessage, error) {
	switch toolName {
	case NameGetDateAndTime:
		return getDateAndTime()
	case NameGetWeather:
		return getWeather(ctx, inv.http, inv.weatherBase, argsJSON)
	default:
		return nil, fmt.Errorf("%w: %s", session.ErrUnsupportedTool, toolName)
	}
}
