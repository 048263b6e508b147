// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package queue

import (
	"context"
	"io"

	"github.com/rapidaai/voicegateway/internal/protocol"
)

// Reseeder is consulted when the queue's bounded wait expires with
// nothing ever produced; it re-enqueues a fresh sessionStart so a stalled
// session does not wedge the request body forever.
type Reseeder func() protocol.OutboundEvent

// BodyReader adapts the lazy Queue consumer into an io.Reader suitable as
// the request body of the bidirectional stream: each call to Read blocks
// (cooperatively, via Queue.Next) until an encoded frame is available.
type BodyReader struct {
	ctx      context.Context
	queue    *Queue
	reseed   Reseeder
	pending  []byte
}

// NewBodyReader builds a BodyReader over the given queue. reseed may be
// nil, in which case a stalled empty queue simply keeps waiting.
func NewBodyReader(ctx context.Context, q *Queue, reseed Reseeder) *BodyReader {
	return &BodyReader{ctx: ctx, queue: q, reseed: reseed}
}

// Read implements io.Reader. It never returns 0, nil unless p has zero
// length; it blocks internally until at least one frame is ready.
func (r *BodyReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		evt, ok, shouldReseed := r.queue.Next(r.ctx)
		if !ok {
			if shouldReseed && r.reseed != nil {
				seeded := r.reseed()
				if err := r.queue.Enqueue(seeded); err != nil {
					return 0, io.EOF
				}
				continue
			}
			return 0, io.EOF
		}
		frame, err := protocol.Encode(evt)
		if err != nil {
			continue
		}
		r.pending = append(frame, '\n')
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
