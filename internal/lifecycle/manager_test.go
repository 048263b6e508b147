// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package lifecycle

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rapidaai/voicegateway/internal/config"
	"github.com/rapidaai/voicegateway/internal/dispatch"
	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/session"
	"github.com/rapidaai/voicegateway/internal/stream"
)

// oneFrameThenEOFStream delivers a single handshake-triggering frame
// (satisfying Initiate's bounded handshake-confirmation wait), then
// reports EOF on every subsequent Recv.
type oneFrameThenEOFStream struct {
	mu   sync.Mutex
	sent bool
}

func (oneFrameThenEOFStream) Send(ctx context.Context, chunk []byte) error { return nil }

func (s *oneFrameThenEOFStream) Recv(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sent {
		s.sent = true
		return []byte(`{"event":{"contentEnd":{"promptName":"p","contentName":"c","type":"TEXT"}}}`), nil
	}
	return nil, io.EOF
}

func (oneFrameThenEOFStream) Close() error { return nil }

type oneFrameThenEOFOpener struct{}

func (oneFrameThenEOFOpener) Open(ctx context.Context, modelID string) (stream.BidiStream, error) {
	return &oneFrameThenEOFStream{}, nil
}

type noopInvoker struct{}

func (noopInvoker) Invoke(ctx context.Context, s *session.Session, toolUseID, toolName, argsJSON string) (json.RawMessage, error) {
	return nil, nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		QueueBound:                    10,
		IdleTimeout:                   5 * time.Minute,
		SweepInterval:                 60 * time.Second,
		TeardownBudget:                5 * time.Second,
		RequestTimeout:                2 * time.Second,
		OpenTimeout:                   time.Second,
		HandshakeTimeout:              time.Second,
		MaxConcurrentStreamsPerClient: 10,
		VoiceID:                       "tiffany",
		ModelID:                       "amazon.nova-sonic-v1:0",
	}
}

func testManager(t *testing.T) (*Manager, *session.Registry) {
	t.Helper()
	logger, err := logging.NewApplicationLogger()
	require.NoError(t, err)

	registry := session.NewRegistry()
	d := dispatch.New(logger, noopInvoker{})
	cfg := testConfig()
	driver := stream.New(oneFrameThenEOFOpener{}, d, logger, "amazon.nova-sonic-v1:0", cfg.RequestTimeout)
	return New(logger, registry, driver, cfg), registry
}

func TestManager_CreateRegistersSession(t *testing.T) {
	m, registry := testManager(t)
	s := m.Create("client-1")

	got, ok := registry.Get("client-1")
	require.True(t, ok)
	require.Same(t, s, got)
	require.True(t, s.IsActive())
	require.NotEmpty(t, s.PromptName())
	require.NotEmpty(t, s.AudioContentID())
}

func TestManager_SeedInitiationEmitsOpeningSequenceInOrder(t *testing.T) {
	m, _ := testManager(t)
	s := m.Create("client-1")

	err := m.SeedInitiation(s, "You are a helpful assistant.")
	require.NoError(t, err)

	kinds := []protocol.Kind{}
	for i := 0; i < 7; i++ {
		evt, ok, _ := s.Queue.Next(context.Background())
		if !ok {
			break
		}
		kinds = append(kinds, evt.Kind)
	}

	require.Equal(t, []protocol.Kind{
		protocol.KindSessionStart,
		protocol.KindPromptStart,
		protocol.KindContentStart, // system TEXT
		protocol.KindTextInput,
		protocol.KindContentEnd, // system close
		protocol.KindContentStart, // audio open
		protocol.KindAudioInput, // sentinel
	}, kinds)
}

func TestManager_StreamAudio_EnqueuesAudioInputForOpenContent(t *testing.T) {
	m, _ := testManager(t)
	s := m.Create("client-1")

	err := m.StreamAudio(s, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	evt, ok, _ := s.Queue.Next(context.Background())
	require.True(t, ok)
	require.Equal(t, protocol.KindAudioInput, evt.Kind)
	ai := evt.Payload.(protocol.AudioInput)
	require.Equal(t, s.AudioContentID(), ai.ContentName)
}

func TestManager_Teardown_ClosesEveryOpenContentAndPrompt(t *testing.T) {
	m, registry := testManager(t)
	s := m.Create("client-1")
	// SeedInitiation populates the tracking structures (activePromptIds,
	// activeContentIds) that Teardown drives from; it does not start the
	// driver, so nothing else consumes the queue concurrently.
	require.NoError(t, m.SeedInitiation(s, "hello"))

	require.NotEmpty(t, s.ActivePromptIds())
	require.NotEmpty(t, s.ActiveContentIds())

	m.Teardown(context.Background(), s)

	require.False(t, s.IsActive())
	_, ok := registry.Get("client-1")
	require.False(t, ok, "expected session removed from registry after teardown")
	require.Empty(t, s.ActiveContentIds())
	require.Empty(t, s.ActivePromptIds())
}

func TestManager_ForceClose_IsIdempotent(t *testing.T) {
	m, registry := testManager(t)
	s := m.Create("client-1")

	m.ForceClose(s)
	require.False(t, s.IsActive())
	_, ok := registry.Get("client-1")
	require.False(t, ok)

	require.NotPanics(t, func() {
		m.ForceClose(s)
	})
}

func TestManager_Sweeper_ForceClosesIdleSessions(t *testing.T) {
	m, registry := testManager(t)
	s := m.Create("client-1")

	s.Touch() // baseline
	// Force the session to look idle by dropping the idle threshold to zero.
	idleCfg := testConfig()
	idleCfg.IdleTimeout = 0
	m.cfg = idleCfg

	notified := make(chan struct{}, 1)
	s.RegisterHandler(KindIdleTimeout, func(sess *session.Session, e protocol.InboundEvent) {
		notified <- struct{}{}
	})

	m.sweepOnce()

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("expected idle-timeout handler to fire")
	}

	_, ok := registry.Get("client-1")
	require.False(t, ok)
}

func TestManager_AcquireClientSlot_CapsAtConfiguredMax(t *testing.T) {
	m, _ := testManager(t)
	m.cfg.MaxConcurrentStreamsPerClient = 2

	require.True(t, m.AcquireClientSlot("c1"))
	require.True(t, m.AcquireClientSlot("c1"))
	require.False(t, m.AcquireClientSlot("c1"), "expected third slot to be refused")

	m.ReleaseClientSlot("c1")
	require.True(t, m.AcquireClientSlot("c1"), "expected a released slot to be reusable")
}

func TestManager_ReleaseClientSlot_IsSafeWithoutAcquire(t *testing.T) {
	m, _ := testManager(t)
	require.NotPanics(t, func() {
		m.ReleaseClientSlot("never-acquired")
	})
}

func TestManager_Initiate_DriverTeardownRemovesSessionFromRegistry(t *testing.T) {
	m, registry := testManager(t)
	s := m.Create("client-1")

	require.NoError(t, m.Initiate(context.Background(), s, "hello"))

	require.Eventually(t, func() bool {
		_, ok := registry.Get("client-1")
		return !ok
	}, time.Second, 10*time.Millisecond, "expected driver's natural EOF to trigger teardown and registry removal")
}
