// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rapidaai/voicegateway/internal/lifecycle"
	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/prompt"
	"github.com/rapidaai/voicegateway/internal/session"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 30 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// Bridge holds the per-client socket state machine: it maps the client's
// control messages onto Session Lifecycle Manager operations and maps
// session events back onto named client messages.
type Bridge struct {
	logger  logging.Logger
	manager *lifecycle.Manager
}

// New builds a Bridge.
func New(logger logging.Logger, manager *lifecycle.Manager) *Bridge {
	return &Bridge{logger: logger, manager: manager}
}

// Handle upgrades the incoming request to a WebSocket and runs the
// per-client connection loop until the client disconnects.
func (b *Bridge) Handle(c *gin.Context) {
	clientID := c.Param("clientId")
	if clientID == "" {
		clientID = c.ClientIP()
	}

	if !b.manager.AcquireClientSlot(clientID) {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	defer b.manager.ReleaseClientSlot(clientID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(10 * 1024 * 1024)

	var writeMu sync.Mutex
	send := func(msg serverMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			b.logger.Warnw("failed to write message to client", "client", clientID, "error", err)
		}
	}

	var current *session.Session

	defer func() {
		if current != nil {
			b.teardownWithDeadline(current)
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warnw("websocket read error", "client", clientID, "error", err)
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			if current != nil {
				_ = b.manager.StreamAudio(current, data)
			}
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			send(serverMessage{Type: serverMsgError, Message: "malformed client message"})
			continue
		}

		switch msg.Type {
		case clientMsgInitSession:
			current = b.handleInitSession(clientID, current, msg, send)
		case clientMsgAudioInput:
			if current == nil {
				send(serverMessage{Type: serverMsgError, Message: "no active session"})
				continue
			}
			chunk, err := decodeAudio(msg.Audio)
			if err != nil {
				send(serverMessage{Type: serverMsgError, Message: "invalid audioInput payload"})
				continue
			}
			_ = b.manager.StreamAudio(current, chunk)
		case clientMsgStopAudio:
			if current != nil {
				b.manager.Teardown(context.Background(), current)
				current = nil
			}
		default:
			send(serverMessage{Type: serverMsgError, Message: "unknown message type"})
		}
	}
}

// handleInitSession implements at-most-one-inflight-session-per-client:
// an existing session is torn down to completion before the new one is
// created, and sessionInitialized is only acknowledged once the new
// session has been fully initiated.
func (b *Bridge) handleInitSession(clientID string, current *session.Session, msg clientMessage, send sendFunc) *session.Session {
	if current != nil {
		b.manager.Teardown(context.Background(), current)
	}

	s := b.manager.Create(clientID)
	registerHandlers(s, send)

	systemPrompt := msg.Prompt
	if systemPrompt == "" {
		rendered, err := prompt.Default()
		if err != nil {
			b.logger.Errorw("failed to render default system prompt", "error", err)
			rendered = "You are a helpful voice assistant."
		}
		systemPrompt = rendered
	}
	s.CustomSystemPrompt = msg.Prompt

	if err := b.manager.Initiate(context.Background(), s, systemPrompt); err != nil {
		b.logger.Errorw("failed to initiate session", "client", clientID, "error", err)
		success := false
		send(serverMessage{Type: serverMsgSessionInitialized, Success: &success, SessionID: s.ID})
		b.manager.ForceClose(s)
		return nil
	}

	success := true
	send(serverMessage{Type: serverMsgSessionInitialized, Success: &success, SessionID: s.ID})
	return s
}

func (b *Bridge) teardownWithDeadline(s *session.Session) {
	done := make(chan struct{})
	go func() {
		b.manager.Teardown(context.Background(), s)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(b.manager.TeardownBudget()):
		b.manager.ForceClose(s)
	}
}

func decodeAudio(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
