// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package stream

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/session"
)

// fakeBidiStream is an in-memory BidiStream double: sent frames are
// captured, and a channel of canned response frames is replayed to Recv.
type fakeBidiStream struct {
	mu       sync.Mutex
	sent     [][]byte
	inbound  chan []byte
	closed   bool
}

func newFakeBidiStream(inbound ...[]byte) *fakeBidiStream {
	ch := make(chan []byte, len(inbound)+1)
	for _, f := range inbound {
		ch <- f
	}
	return &fakeBidiStream{inbound: ch}
}

func (f *fakeBidiStream) Send(ctx context.Context, chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeBidiStream) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-f.inbound:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeBidiStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.inbound)
	return nil
}

type fakeOpener struct {
	stream *fakeBidiStream
}

func (o *fakeOpener) Open(ctx context.Context, modelID string) (BidiStream, error) {
	return o.stream, nil
}

// stuckBidiStream never returns from Recv on its own and ignores context
// cancellation, simulating a misbehaving or wedged upstream connection.
type stuckBidiStream struct{}

func (stuckBidiStream) Send(ctx context.Context, chunk []byte) error { return nil }
func (stuckBidiStream) Recv(ctx context.Context) ([]byte, error)     { select {} }
func (stuckBidiStream) Close() error                                 { return nil }

type fakeDispatcher struct {
	mu      sync.Mutex
	kinds   []protocol.Kind
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, s *session.Session, evt protocol.InboundEvent) {
	f.mu.Lock()
	f.kinds = append(f.kinds, evt.Kind)
	f.mu.Unlock()
}

func testLogger(t *testing.T) logging.Logger {
	t.Helper()
	l, err := logging.NewApplicationLogger()
	require.NoError(t, err)
	return l
}

func TestDriver_NaturalEOF_NotifiesStreamComplete(t *testing.T) {
	s := session.New("s1", "p", "a", 10)
	notified := make(chan struct{}, 1)
	s.RegisterHandler(KindStreamComplete, func(sess *session.Session, e protocol.InboundEvent) {
		notified <- struct{}{}
	})

	bidi := newFakeBidiStream()
	require.NoError(t, bidi.Close()) // closed inbound -> immediate EOF on first Recv
	d := New(&fakeOpener{stream: bidi}, &fakeDispatcher{}, testLogger(t), "amazon.nova-sonic-v1:0", 2*time.Second)

	go func() {
		time.Sleep(30 * time.Millisecond)
		s.Deactivate()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := d.Run(ctx, s)
	require.NoError(t, err)

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("expected streamComplete notification on natural EOF")
	}
}

func TestDriver_PumpsQueuedEventsInOrder(t *testing.T) {
	s := session.New("s1", "p", "a", 10)
	_ = s.Enqueue(protocol.OutboundEvent{Kind: protocol.KindSessionStart, Payload: protocol.SessionStart{}})
	_ = s.Enqueue(protocol.OutboundEvent{Kind: protocol.KindPromptStart, Payload: protocol.PromptStart{PromptName: "p"}})

	bidi := newFakeBidiStream()
	d := New(&fakeOpener{stream: bidi}, &fakeDispatcher{}, testLogger(t), "amazon.nova-sonic-v1:0", 2*time.Second)

	go func() {
		time.Sleep(50 * time.Millisecond)
		s.Deactivate()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = d.Run(ctx, s)

	bidi.mu.Lock()
	defer bidi.mu.Unlock()
	require.GreaterOrEqual(t, len(bidi.sent), 2)
	require.Contains(t, string(bidi.sent[0]), "sessionStart")
	require.Contains(t, string(bidi.sent[1]), "promptStart")
}

func TestDriver_ModelStreamError_DispatchesAndReturnsError(t *testing.T) {
	s := session.New("s1", "p", "a", 10)
	errorFrame := []byte(`{"event":{"modelStreamErrorException":{"message":"bad sequence"}}}`)
	bidi := newFakeBidiStream(errorFrame)
	disp := &fakeDispatcher{}
	d := New(&fakeOpener{stream: bidi}, disp, testLogger(t), "amazon.nova-sonic-v1:0", 2*time.Second)

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.Deactivate()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := d.Run(ctx, s)
	require.Error(t, err)

	disp.mu.Lock()
	defer disp.mu.Unlock()
	require.Contains(t, disp.kinds, protocol.KindModelStreamErrorException)
}

func TestDriver_Deactivate_UnblocksStuckRecvWithoutWaitingForRequestTimeout(t *testing.T) {
	s := session.New("s1", "p", "a", 10)

	// stuckBidiStream.Recv never returns and ignores ctx cancellation; the
	// session's own close signal, not the one-minute request timeout below,
	// must be what unblocks read here.
	d := New(&stuckOpener{}, &fakeDispatcher{}, testLogger(t), "amazon.nova-sonic-v1:0", time.Minute)

	done := make(chan error, 1)
	go func() {
		done <- d.Run(context.Background(), s)
	}()

	time.Sleep(30 * time.Millisecond)
	s.Deactivate()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected Deactivate to unblock a stuck Recv well before the one-minute request timeout")
	}
}

type stuckOpener struct{}

func (stuckOpener) Open(ctx context.Context, modelID string) (BidiStream, error) {
	return stuckBidiStream{}, nil
}

func TestDriver_StopsWhenSessionInactive(t *testing.T) {
	s := session.New("s1", "p", "a", 10)
	bidi := newFakeBidiStream()
	d := New(&fakeOpener{stream: bidi}, &fakeDispatcher{}, testLogger(t), "amazon.nova-sonic-v1:0", 2*time.Second)

	s.Deactivate()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := d.Run(ctx, s)
	require.NoError(t, err)
}
