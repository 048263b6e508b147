// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package lifecycle owns session creation, initiation, audio streaming,
// ordered teardown, the idle sweeper, and force-close.
package lifecycle

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/voicegateway/internal/config"
	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/session"
	"github.com/rapidaai/voicegateway/internal/stream"
	"github.com/rapidaai/voicegateway/internal/tool"
)

// settlePause separates each step of initiation and teardown so upstream
// has time to accept events in order, per §4.7's "short settling pause
// between steps".
const settlePause = 150 * time.Millisecond

// emptyAudioSentinel is the 4-byte zero chunk sent before closing an
// audio content block; a workaround for upstream rejecting audio blocks
// that never carried data. Contractual — see design notes.
var emptyAudioSentinel = make([]byte, 4)

// Manager implements session creation, initiation, teardown, the idle
// sweeper, and force-close.
type Manager struct {
	logger   logging.Logger
	registry *session.Registry
	driver   *stream.Driver
	cfg      *config.AppConfig

	concurrencyMu sync.Mutex
	concurrency   map[string]int
}

// New builds a Manager.
func New(logger logging.Logger, registry *session.Registry, driver *stream.Driver, cfg *config.AppConfig) *Manager {
	return &Manager{
		logger:      logger,
		registry:    registry,
		driver:      driver,
		cfg:         cfg,
		concurrency: make(map[string]int),
	}
}

// TeardownBudget exposes the configured standard-teardown deadline for
// callers (e.g. the bridge) that need to bound an abrupt-disconnect
// teardown before forcing a close.
func (m *Manager) TeardownBudget() time.Duration {
	return m.cfg.TeardownBudget
}

// AcquireClientSlot reserves one of the configured concurrent-stream
// slots for clientID, returning false if the client already holds its
// configured maximum.
func (m *Manager) AcquireClientSlot(clientID string) bool {
	m.concurrencyMu.Lock()
	defer m.concurrencyMu.Unlock()
	if m.concurrency[clientID] >= m.cfg.MaxConcurrentStreamsPerClient {
		return false
	}
	m.concurrency[clientID]++
	return true
}

// ReleaseClientSlot releases a slot previously reserved by
// AcquireClientSlot for clientID. Safe to call even if no slot is held.
func (m *Manager) ReleaseClientSlot(clientID string) {
	m.concurrencyMu.Lock()
	defer m.concurrencyMu.Unlock()
	if m.concurrency[clientID] <= 0 {
		return
	}
	m.concurrency[clientID]--
	if m.concurrency[clientID] == 0 {
		delete(m.concurrency, clientID)
	}
}

// Create allocates a new Session record, generating promptName and
// audioContentId, and registers it. Any existing record under the same
// id is deactivated and replaced by Registry.Put.
func (m *Manager) Create(id string) *session.Session {
	promptName := uuid.NewString()
	audioContentID := uuid.NewString()
	s := session.New(id, promptName, audioContentID, m.cfg.QueueBound)
	m.registry.Put(s)
	return s
}

// Initiate emits the fixed opening sequence (§4.7) and starts the Remote
// Stream Driver, then blocks until the upstream stream has confirmed the
// handshake or one of the two bounded initiation windows elapses:
// m.cfg.OpenTimeout for the stream to open, m.cfg.HandshakeTimeout for
// the first inbound frame after that. On any failure the session is
// torn down and a non-nil error is returned; callers must not acknowledge
// the client's initSession request until Initiate returns nil.
// systemPrompt is sent verbatim; an empty string means the default
// prompt should already have been substituted by the caller.
func (m *Manager) Initiate(ctx context.Context, s *session.Session, systemPrompt string) error {
	if err := m.SeedInitiation(s, systemPrompt); err != nil {
		m.ForceClose(s)
		return fmt.Errorf("initiate: %w", err)
	}

	opened := make(chan struct{})
	confirmed := make(chan struct{})
	failed := make(chan error, 1)
	var openOnce, confirmOnce, failOnce sync.Once

	// The driver may already report errors through this kind (e.g. once
	// the session is fully live); preserve and restore that handler once
	// the initiation window resolves, rather than clobbering it.
	previousDriverError, hadDriverError := s.HandlerFor(stream.KindDriverError)
	restoreDriverErrorHandler := func() {
		if hadDriverError {
			s.RegisterHandler(stream.KindDriverError, previousDriverError)
		}
	}

	s.RegisterHandler(stream.KindStreamOpened, func(sess *session.Session, e protocol.InboundEvent) {
		openOnce.Do(func() { close(opened) })
	})
	s.RegisterHandler(stream.KindHandshakeConfirmed, func(sess *session.Session, e protocol.InboundEvent) {
		confirmOnce.Do(func() { close(confirmed) })
	})
	s.RegisterHandler(stream.KindDriverError, func(sess *session.Session, e protocol.InboundEvent) {
		failOnce.Do(func() { failed <- session.ErrUpstreamTransient })
	})

	m.StartDriver(s)

	if err := awaitInitiationGate(opened, failed, m.cfg.OpenTimeout, "stream open"); err != nil {
		restoreDriverErrorHandler()
		m.ForceClose(s)
		return err
	}
	if err := awaitInitiationGate(confirmed, failed, m.cfg.HandshakeTimeout, "handshake confirmation"); err != nil {
		restoreDriverErrorHandler()
		m.ForceClose(s)
		return err
	}

	restoreDriverErrorHandler()
	return nil
}

// awaitInitiationGate waits for done, a failure, or budget to elapse,
// whichever comes first.
func awaitInitiationGate(done <-chan struct{}, failed <-chan error, budget time.Duration, stage string) error {
	timer := time.NewTimer(budget)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case err := <-failed:
		return fmt.Errorf("initiate: %s: %w", stage, err)
	case <-timer.C:
		return fmt.Errorf("initiate: %s: %w", stage, session.ErrInitiationTimeout)
	}
}

// SeedInitiation enqueues the fixed opening sequence (§4.7) without
// starting the driver, so the resulting queue contents can be inspected
// directly — the driver's own pump goroutine is the only other consumer
// of a session's queue, and tests should not race against it.
func (m *Manager) SeedInitiation(s *session.Session, systemPrompt string) error {
	promptName := s.PromptName()
	audioContentID := s.AudioContentID()

	// 1. sessionStart
	if err := s.Enqueue(protocol.OutboundEvent{
		Kind: protocol.KindSessionStart,
		Payload: protocol.SessionStart{
			InferenceConfiguration: protocol.InferenceConfiguration{
				MaxTokens:   s.InferenceConfig.MaxTokens,
				TopP:        s.InferenceConfig.TopP,
				Temperature: s.InferenceConfig.Temperature,
			},
		},
	}); err != nil {
		return fmt.Errorf("initiate: sessionStart: %w", err)
	}
	time.Sleep(settlePause)

	// 2. promptStart
	if err := s.Enqueue(protocol.OutboundEvent{
		Kind: protocol.KindPromptStart,
		Payload: protocol.PromptStart{
			PromptName:                 promptName,
			TextOutputConfiguration:    protocol.TextOutputConfiguration{MediaType: "text/plain"},
			AudioOutputConfiguration:   m.audioOutputConfiguration(),
			ToolUseOutputConfiguration: protocol.ToolUseOutputConfiguration{MediaType: "application/json"},
			ToolConfiguration:          protocol.ToolConfiguration{Tools: tool.Specs()},
		},
	}); err != nil {
		return fmt.Errorf("initiate: promptStart: %w", err)
	}
	s.MarkPromptOpen(promptName)
	time.Sleep(settlePause)

	// 3. system prompt triplet
	sysContentID := uuid.NewString()
	if err := s.Enqueue(protocol.OutboundEvent{
		Kind: protocol.KindContentStart,
		Payload: protocol.ContentStart{
			PromptName:             promptName,
			ContentName:            sysContentID,
			Type:                   protocol.ContentTypeText,
			Interactive:            false,
			Role:                   protocol.RoleSystem,
			TextInputConfiguration: &protocol.TextInputConfiguration{MediaType: "text/plain"},
		},
	}); err != nil {
		return fmt.Errorf("initiate: system contentStart: %w", err)
	}
	s.MarkContentOpen(sysContentID, promptName)

	if err := s.Enqueue(protocol.OutboundEvent{
		Kind:    protocol.KindTextInput,
		Payload: protocol.TextInput{PromptName: promptName, ContentName: sysContentID, Content: systemPrompt},
	}); err != nil {
		return fmt.Errorf("initiate: system textInput: %w", err)
	}

	if err := s.Enqueue(protocol.OutboundEvent{
		Kind:    protocol.KindContentEnd,
		Payload: protocol.ContentEnd{PromptName: promptName, ContentName: sysContentID},
	}); err != nil {
		return fmt.Errorf("initiate: system contentEnd: %w", err)
	}
	s.MarkContentClosed(sysContentID)
	time.Sleep(settlePause)

	// 4. open the user-audio content block
	if err := s.Enqueue(protocol.OutboundEvent{
		Kind: protocol.KindContentStart,
		Payload: protocol.ContentStart{
			PromptName:              promptName,
			ContentName:             audioContentID,
			Type:                    protocol.ContentTypeAudio,
			Interactive:             true,
			Role:                    protocol.RoleUser,
			AudioInputConfiguration: m.audioInputConfiguration(),
		},
	}); err != nil {
		return fmt.Errorf("initiate: audio contentStart: %w", err)
	}
	s.MarkAudioContentOpen(audioContentID, promptName)
	time.Sleep(settlePause)

	// 5. empty-audio sentinel
	if err := m.StreamAudio(s, emptyAudioSentinel); err != nil {
		return fmt.Errorf("initiate: sentinel audioInput: %w", err)
	}

	return nil
}

// StartDriver runs the Remote Stream Driver for s in the background. It
// owns its own long-lived context (per Design Note §9, a streamer should
// not be torn down just because the caller's request context ends) and
// tears the session down, best-effort, once the driver returns for any
// reason.
func (m *Manager) StartDriver(s *session.Session) {
	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		if err := m.driver.Run(runCtx, s); err != nil {
			m.logger.Errorw("driver run ended with error", "session", s.ID, "error", err)
		}
		m.Teardown(context.Background(), s)
	}()
}

// StreamAudio enqueues one audioInput chunk for the session's open audio
// content block.
func (m *Manager) StreamAudio(s *session.Session, chunk []byte) error {
	if err := s.Enqueue(protocol.OutboundEvent{
		Kind: protocol.KindAudioInput,
		Payload: protocol.AudioInput{
			PromptName:  s.PromptName(),
			ContentName: s.AudioContentID(),
			Content:     base64.StdEncoding.EncodeToString(chunk),
		},
	}); err != nil {
		return session.ErrQueueClosed
	}
	return nil
}

// Teardown performs the ordered, best-effort close of §4.7: every step is
// attempted even if an earlier one failed, and the session is always
// removed from the registry at the end. Idempotent: the bridge's
// foreground stopAudio/disconnect handling and the driver's own
// post-Run completion both call this for the same session, and only
// the first to arrive actually runs the steps below.
func (m *Manager) Teardown(ctx context.Context, s *session.Session) {
	if !s.BeginTeardown() {
		return
	}

	// Step 1: ensure at least one audio chunk has been sent for the open
	// audio content (the sentinel from initiation normally covers this).
	if s.IsAudioContentStartSent() {
		_ = m.StreamAudio(s, emptyAudioSentinel)
		time.Sleep(settlePause)
	}

	// Step 2: close every open content block.
	for contentID, promptID := range s.ActiveContentIds() {
		_ = s.Enqueue(protocol.OutboundEvent{
			Kind:    protocol.KindContentEnd,
			Payload: protocol.ContentEnd{PromptName: promptID, ContentName: contentID},
		})
		s.MarkContentClosed(contentID)
	}
	time.Sleep(settlePause)

	// Step 3: close every open prompt.
	for _, promptID := range s.ActivePromptIds() {
		_ = s.Enqueue(protocol.OutboundEvent{
			Kind:    protocol.KindPromptEnd,
			Payload: protocol.PromptEnd{PromptName: promptID},
		})
		s.MarkPromptClosed(promptID)
	}
	time.Sleep(settlePause)

	// Step 4: sessionEnd, deactivate, signal, remove.
	_ = s.Enqueue(protocol.OutboundEvent{Kind: protocol.KindSessionEnd, Payload: protocol.SessionEnd{}})
	s.Deactivate()
	m.registry.Remove(s.ID)
}

// ForceClose bypasses the ordered teardown steps entirely: marks the
// session inactive, fires its close signal, and removes it from the
// registry. Safe to call repeatedly, or after Teardown already ran for
// the same session (no-op either way).
func (m *Manager) ForceClose(s *session.Session) {
	if s == nil {
		return
	}
	if !s.BeginTeardown() {
		return
	}
	s.Deactivate()
	m.registry.Remove(s.ID)
}

func (m *Manager) audioOutputConfiguration() protocol.AudioOutputConfiguration {
	return protocol.AudioOutputConfiguration{
		AudioType:       "SPEECH",
		Encoding:        "base64",
		MediaType:       "audio/lpcm",
		SampleRateHertz: 24000,
		SampleSizeBits:  16,
		ChannelCount:    1,
		VoiceID:         m.cfg.VoiceID,
	}
}

func (m *Manager) audioInputConfiguration() *protocol.AudioInputConfiguration {
	return &protocol.AudioInputConfiguration{
		AudioType:       "SPEECH",
		Encoding:        "base64",
		MediaType:       "audio/lpcm",
		SampleRateHertz: 16000,
		SampleSizeBits:  16,
		ChannelCount:    1,
	}
}
