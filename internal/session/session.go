// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package session holds per-session mutable state — tracked prompt and
// content identifiers, lifecycle flags, the outbound queue, and the
// inbound handler table — plus the process-wide session registry.
package session

import (
	"sync"
	"time"

	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/queue"
)

// Handler processes one decoded inbound event for a session. A handler
// that panics is recovered and logged by the dispatcher; it must never
// interrupt the response loop.
type Handler func(s *Session, evt protocol.InboundEvent)

// HandlerAny is the map key under which the catch-all handler is stored.
const HandlerAny protocol.Kind = "*"

// InferenceDefaults are the generation parameters sent in sessionStart
// unless a session overrides them.
type InferenceDefaults struct {
	MaxTokens   int
	TopP        float64
	Temperature float64
}

// DefaultInferenceDefaults mirrors the configuration defaults.
var DefaultInferenceDefaults = InferenceDefaults{MaxTokens: 1024, TopP: 0.9, Temperature: 0.7}

// Session is one end-to-end conversation with its own upstream
// bidirectional stream. All mutable fields below are guarded by mu.
type Session struct {
	ID string

	Queue *queue.Queue

	mu sync.Mutex

	promptName     string
	audioContentID string

	activePromptIds  map[string]struct{}
	activeContentIds map[string]string // contentID -> promptID

	handlers map[protocol.Kind]Handler

	isActive               bool
	isPromptStartSent       bool
	isAudioContentStartSent bool

	lastActivity time.Time

	// Tool-call correlation scratch fields, populated by the dispatcher
	// on toolUse and consumed on the matching contentEnd(TOOL).
	toolUseContent string
	toolUseID      string
	toolName       string

	InferenceConfig    InferenceDefaults
	CustomSystemPrompt string

	closeSignal chan struct{}
	closeOnce   sync.Once

	teardownOnce sync.Once
}

// New creates an active Session with fresh promptName/audioContentId.
func New(id, promptName, audioContentID string, bound int) *Session {
	return &Session{
		ID:               id,
		Queue:            queue.New(bound),
		promptName:       promptName,
		audioContentID:   audioContentID,
		activePromptIds:  make(map[string]struct{}),
		activeContentIds: make(map[string]string),
		handlers:         make(map[protocol.Kind]Handler),
		isActive:         true,
		lastActivity:     time.Now(),
		InferenceConfig:  DefaultInferenceDefaults,
		closeSignal:      make(chan struct{}),
	}
}

// PromptName returns the session's single prompt identifier.
func (s *Session) PromptName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptName
}

// AudioContentID returns the identifier of the open user-audio content block.
func (s *Session) AudioContentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioContentID
}

// IsActive reports whether the session has not yet been torn down.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActive
}

// CloseSignal returns the channel closed exactly once when the session is
// deactivated, usable as a cancellation signal in select statements.
func (s *Session) CloseSignal() <-chan struct{} {
	return s.closeSignal
}

// Deactivate flips isActive to false (idempotent), fires closeSignal, and
// closes the outbound queue. It does not touch the registry; callers
// orchestrate that.
func (s *Session) Deactivate() {
	s.mu.Lock()
	s.isActive = false
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closeSignal) })
	s.Queue.Close()
}

// BeginTeardown reports whether the caller is the first to attempt
// tearing this session down. Both a foreground caller (e.g. the bridge
// reacting to stopAudio or a disconnect) and the driver's own
// post-Run completion handler race to close the same session; only the
// first to call this wins and should run the ordered teardown steps.
func (s *Session) BeginTeardown() bool {
	first := false
	s.teardownOnce.Do(func() { first = true })
	return first
}

// Touch updates last-activity to now. Called on every outbound or inbound event.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the last-activity timestamp.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Enqueue appends an event to the outbound queue, rejecting the call once
// the session is inactive (ErrQueueClosed), and touches last-activity.
func (s *Session) Enqueue(e protocol.OutboundEvent) error {
	s.mu.Lock()
	active := s.isActive
	s.mu.Unlock()
	if !active {
		return ErrQueueClosed
	}
	if err := s.Queue.Enqueue(e); err != nil {
		return ErrQueueClosed
	}
	s.Touch()
	return nil
}

// MarkPromptOpen records promptName in activePromptIds and the
// isPromptStartSent flag.
func (s *Session) MarkPromptOpen(promptName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePromptIds[promptName] = struct{}{}
	s.isPromptStartSent = true
}

// MarkPromptClosed removes promptName from activePromptIds.
func (s *Session) MarkPromptClosed(promptName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activePromptIds, promptName)
}

// ActivePromptIds returns a snapshot of the open prompt identifiers.
func (s *Session) ActivePromptIds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.activePromptIds))
	for p := range s.activePromptIds {
		out = append(out, p)
	}
	return out
}

// MarkContentOpen records contentID as owned by promptName.
func (s *Session) MarkContentOpen(contentID, promptName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeContentIds[contentID] = promptName
}

// MarkAudioContentOpen additionally sets isAudioContentStartSent.
func (s *Session) MarkAudioContentOpen(contentID, promptName string) {
	s.mu.Lock()
	s.activeContentIds[contentID] = promptName
	s.isAudioContentStartSent = true
	s.mu.Unlock()
}

// MarkContentClosed atomically removes contentID from activeContentIds.
func (s *Session) MarkContentClosed(contentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeContentIds, contentID)
}

// ActiveContentIds returns a snapshot of open content->prompt mappings.
func (s *Session) ActiveContentIds() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.activeContentIds))
	for k, v := range s.activeContentIds {
		out[k] = v
	}
	return out
}

// IsAudioContentStartSent reports whether the user-audio content block has
// been opened.
func (s *Session) IsAudioContentStartSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAudioContentStartSent
}

// RegisterHandler installs a handler for a specific kind, or for
// HandlerAny to register the catch-all fallback.
func (s *Session) RegisterHandler(kind protocol.Kind, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

// HandlerFor returns the handler registered for kind and whether one exists.
func (s *Session) HandlerFor(kind protocol.Kind) (Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[kind]
	return h, ok
}

// SetPendingToolUse stashes the tool-call correlation fields captured on
// an inbound toolUse event, to be consumed by the matching contentEnd(TOOL).
func (s *Session) SetPendingToolUse(toolUseID, toolName, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolUseID = toolUseID
	s.toolName = toolName
	s.toolUseContent = content
}

// TakePendingToolUse returns and clears the stashed tool-call correlation
// fields.
func (s *Session) TakePendingToolUse() (toolUseID, toolName, content string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toolUseID == "" {
		return "", "", "", false
	}
	toolUseID, toolName, content = s.toolUseID, s.toolName, s.toolUseContent
	s.toolUseID, s.toolName, s.toolUseContent = "", "", ""
	return toolUseID, toolName, content, true
}
