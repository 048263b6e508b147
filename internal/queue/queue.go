// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package queue implements the bounded, single-producer/single-consumer
// outbound event queue that feeds the remote stream's request body.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rapidaai/voicegateway/internal/protocol"
)

// DefaultBound is the default maximum number of pending items retained
// per session before audioInput items start dropping oldest-first.
const DefaultBound = 200

// emptyWait bounds how long Next suspends before re-checking state even
// with nothing enqueued, so a stalled session re-seeds sessionStart
// instead of hanging forever.
const emptyWait = 10 * time.Second

// ErrClosed is returned by Enqueue once the queue has been closed.
var ErrClosed = errorString("queue closed")

type errorString string

func (e errorString) Error() string { return string(e) }

// Queue is a bounded FIFO of protocol.OutboundEvent with drop-oldest
// backpressure for audioInput items only.
type Queue struct {
	mu     sync.Mutex
	items  []protocol.OutboundEvent
	bound  int
	closed bool

	signal chan struct{} // single-slot wakeup for the consumer
	close  chan struct{} // closed exactly once, on Close

	everProduced bool
}

// New creates a Queue with the given bound. A bound <= 0 uses DefaultBound.
func New(bound int) *Queue {
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Queue{
		bound:  bound,
		signal: make(chan struct{}, 1),
		close:  make(chan struct{}),
	}
}

func isAudioInput(e protocol.OutboundEvent) bool {
	return e.Kind == protocol.KindAudioInput
}

// Enqueue appends an event, applying the drop-oldest-audio policy at the
// bound. It returns ErrClosed once the queue has been closed; per the
// session contract, callers must not invoke Enqueue on an inactive
// session's queue, but Enqueue itself enforces it defensively too.
func (q *Queue) Enqueue(e protocol.OutboundEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	if len(q.items) >= q.bound {
		if isAudioInput(e) {
			// Drop the oldest audioInput item to make room; non-audio
			// items are never dropped and are appended past the bound.
			q.dropOldestAudioLocked()
		}
	}

	q.items = append(q.items, e)
	q.wake()
	return nil
}

func (q *Queue) dropOldestAudioLocked() {
	for i, it := range q.items {
		if isAudioInput(it) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Len reports the current queue depth (for tests and metrics).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue from accepting further items and wakes any
// suspended consumer; items already queued are still returned by Next
// until drained. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.close)
}

// Next pops the next event in strict FIFO order, suspending when empty
// until an item is enqueued, the queue closes, or a bounded wait timer
// elapses. On timer expiry with nothing ever produced it returns
// (zero, false, true) to signal the caller should re-seed sessionStart.
// On close with nothing left to drain it returns (zero, false, false).
func (q *Queue) Next(ctx context.Context) (protocol.OutboundEvent, bool, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.everProduced = true
			q.mu.Unlock()
			return item, true, false
		}
		closed := q.closed
		everProduced := q.everProduced
		q.mu.Unlock()

		if closed {
			return protocol.OutboundEvent{}, false, false
		}

		timer := time.NewTimer(emptyWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return protocol.OutboundEvent{}, false, false
		case <-q.close:
			timer.Stop()
			return protocol.OutboundEvent{}, false, false
		case <-q.signal:
			timer.Stop()
			continue
		case <-timer.C:
			if !everProduced {
				return protocol.OutboundEvent{}, false, true
			}
			continue
		}
	}
}
