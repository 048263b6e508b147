// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package stream drives the bidirectional HTTP/2 stream to the remote
// speech-to-speech inference service: one stream per session, request
// body fed lazily from the outbound queue, response body classified and
// routed through the Event Dispatcher.
package stream

import "context"

// BidiStream is the minimal bidirectional-stream surface the driver
// needs. The production implementation wraps
// bedrockruntime.Client.InvokeModelWithBidirectionalStream; tests
// substitute an in-memory fake.
type BidiStream interface {
	// Send writes one already-framed JSON chunk to the upstream request
	// side of the stream.
	Send(ctx context.Context, chunk []byte) error

	// Recv blocks until the next framed JSON chunk is available from the
	// upstream response side, returning io.EOF when the stream ends
	// naturally.
	Recv(ctx context.Context) ([]byte, error)

	// Close releases the stream's resources. Safe to call more than once.
	Close() error
}

// Opener opens one BidiStream per session against the configured model.
type Opener interface {
	Open(ctx context.Context, modelID string) (BidiStream, error)
}
