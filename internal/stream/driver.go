// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package stream

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/voicegateway/internal/logging"
	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/session"
)

// Dispatcher is the subset of dispatch.Dispatcher the driver needs, kept
// as an interface here to avoid an import cycle between stream and
// dispatch (dispatch does not depend on stream).
type Dispatcher interface {
	Dispatch(ctx context.Context, s *session.Session, evt protocol.InboundEvent)
}

// KindStreamOpened, KindHandshakeConfirmed, KindStreamComplete, and
// KindDriverError are local, non-wire kinds used to notify registered
// handlers about the driver's lifecycle milestones and two terminal
// conditions.
const (
	KindStreamOpened       protocol.Kind = "streamOpened"
	KindHandshakeConfirmed protocol.Kind = "handshakeConfirmed"
	KindStreamComplete     protocol.Kind = "streamComplete"
	KindDriverError        protocol.Kind = "driverError"
)

// errSessionClosed is returned internally by recv/send when the
// session's close signal fires before the underlying call completes. It
// never escapes the driver as a reported error.
var errSessionClosed = errors.New("stream: session closed")

// Driver opens and drives one bidirectional stream per session.
type Driver struct {
	opener         Opener
	dispatcher     Dispatcher
	logger         logging.Logger
	modelID        string
	requestTimeout time.Duration
}

// New builds a Driver against the given Opener. requestTimeout bounds
// every individual Send/Recv call; zero means no additional deadline
// beyond the caller's context.
func New(opener Opener, dispatcher Dispatcher, logger logging.Logger, modelID string, requestTimeout time.Duration) *Driver {
	return &Driver{opener: opener, dispatcher: dispatcher, logger: logger, modelID: modelID, requestTimeout: requestTimeout}
}

// Run opens the stream for s and drives it to completion: it starts the
// producer (pumping the outbound queue into the stream) and the consumer
// (reading and dispatching inbound events) concurrently, and returns once
// either side reaches a terminal condition. Run does not itself tear the
// session down; callers (the lifecycle manager) observe its return and
// perform teardown.
func (d *Driver) Run(ctx context.Context, s *session.Session) error {
	bidi, err := d.opener.Open(ctx, d.modelID)
	if err != nil {
		d.notify(s, KindDriverError, err)
		return err
	}
	defer bidi.Close()

	d.notify(s, KindStreamOpened, nil)
	d.verifySessionStartSeeded(s)

	g, gctx := errgroup.WithContext(ctx)
	// The response side ending (natural EOF included) also stops the pump,
	// which would otherwise stay suspended in Queue.Next.
	gctx, stopPump := context.WithCancel(gctx)
	defer stopPump()
	g.Go(func() error { return d.pump(gctx, s, bidi) })
	g.Go(func() error {
		defer stopPump()
		return d.read(gctx, s, bidi)
	})

	return g.Wait()
}

// verifySessionStartSeeded re-seeds sessionStart if nothing has been
// queued yet, per §4.4's "upon open, verify the first queued outbound
// event is sessionStart".
func (d *Driver) verifySessionStartSeeded(s *session.Session) {
	if s.Queue.Len() > 0 {
		return
	}
	_ = s.Enqueue(protocol.OutboundEvent{
		Kind: protocol.KindSessionStart,
		Payload: protocol.SessionStart{
			InferenceConfiguration: protocol.InferenceConfiguration{
				MaxTokens:   s.InferenceConfig.MaxTokens,
				TopP:        s.InferenceConfig.TopP,
				Temperature: s.InferenceConfig.Temperature,
			},
		},
	})
}

// pump drains the outbound queue in strict order and writes each frame
// to the upstream request side. It stops when the session goes inactive
// (Queue.Next returns false or the close signal fires), never blocking
// indefinitely on a single Send.
func (d *Driver) pump(ctx context.Context, s *session.Session, bidi BidiStream) error {
	for {
		select {
		case <-s.CloseSignal():
			return nil
		default:
		}

		evt, ok, shouldReseed := s.Queue.Next(ctx)
		if !ok {
			if shouldReseed && s.IsActive() {
				d.verifySessionStartSeeded(s)
				continue
			}
			return nil
		}

		frame, err := protocol.Encode(evt)
		if err != nil {
			d.logger.Errorw("failed to encode outbound event", "session", s.ID, "kind", evt.Kind, "error", err)
			continue
		}

		if err := d.send(ctx, s, bidi, frame); err != nil {
			if errors.Is(err, errSessionClosed) || ctx.Err() != nil {
				return nil
			}
			d.notify(s, KindDriverError, err)
			return err
		}
	}
}

// read loops over the response side, decoding and dispatching each
// inbound frame, until one of the four exit conditions of §4.4 holds.
func (d *Driver) read(ctx context.Context, s *session.Session, bidi BidiStream) error {
	confirmed := false
	for {
		chunk, err := d.recv(ctx, s, bidi)
		if errors.Is(err, errSessionClosed) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			d.notify(s, KindStreamComplete, nil)
			return nil
		}
		if err != nil {
			d.notify(s, KindDriverError, err)
			return err
		}

		s.Touch()
		if !confirmed {
			confirmed = true
			d.notify(s, KindHandshakeConfirmed, nil)
		}

		evt, err := protocol.Decode(chunk)
		if err != nil {
			d.logger.Errorw("failed to decode inbound frame", "session", s.ID, "error", err)
			continue
		}

		switch evt.Kind {
		case protocol.KindModelStreamErrorException, protocol.KindInternalServerException:
			d.dispatcher.Dispatch(ctx, s, evt)
			d.notify(s, KindDriverError, errors.New(string(evt.Kind)))
			return session.ErrUpstreamValidation
		default:
			d.dispatcher.Dispatch(ctx, s, evt)
		}
	}
}

// recv runs one bidi.Recv bounded by the configured per-request timeout
// and the session's close signal: it returns as soon as either fires,
// even if the concrete BidiStream implementation ignores the context it
// was given (the call is left running in the background in that case,
// still bounded by the timeout).
func (d *Driver) recv(ctx context.Context, s *session.Session, bidi BidiStream) ([]byte, error) {
	recvCtx := ctx
	if d.requestTimeout > 0 {
		var cancel context.CancelFunc
		recvCtx, cancel = context.WithTimeout(ctx, d.requestTimeout)
		defer cancel()
	}

	type result struct {
		chunk []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		chunk, err := bidi.Recv(recvCtx)
		done <- result{chunk, err}
	}()

	select {
	case r := <-done:
		return r.chunk, r.err
	case <-recvCtx.Done():
		return nil, recvCtx.Err()
	case <-s.CloseSignal():
		return nil, errSessionClosed
	}
}

// send runs one bidi.Send bounded the same way as recv.
func (d *Driver) send(ctx context.Context, s *session.Session, bidi BidiStream, frame []byte) error {
	sendCtx := ctx
	if d.requestTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.requestTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- bidi.Send(sendCtx, frame)
	}()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		return sendCtx.Err()
	case <-s.CloseSignal():
		return errSessionClosed
	}
}

func (d *Driver) notify(s *session.Session, kind protocol.Kind, cause error) {
	h, ok := s.HandlerFor(kind)
	if !ok {
		return
	}
	payload := protocol.InboundEvent{Kind: kind, RawKind: string(kind)}
	if cause != nil {
		d.logger.Errorw("stream terminal condition", "session", s.ID, "kind", kind, "error", cause)
	}
	h(s, payload)
}
