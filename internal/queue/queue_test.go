// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rapidaai/voicegateway/internal/protocol"
)

func audioItem(content string) protocol.OutboundEvent {
	return protocol.OutboundEvent{
		Kind:    protocol.KindAudioInput,
		Payload: protocol.AudioInput{PromptName: "p", ContentName: "c", Content: content},
	}
}

func textItem() protocol.OutboundEvent {
	return protocol.OutboundEvent{
		Kind:    protocol.KindTextInput,
		Payload: protocol.TextInput{PromptName: "p", ContentName: "c", Content: "hi"},
	}
}

func TestEnqueueNext_StrictOrder(t *testing.T) {
	q := New(10)
	if err := q.Enqueue(audioItem("1")); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if err := q.Enqueue(audioItem("2")); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	ctx := context.Background()
	first, ok, _ := q.Next(ctx)
	if !ok {
		t.Fatalf("expected an item")
	}
	if first.Payload.(protocol.AudioInput).Content != "1" {
		t.Fatalf("expected first item content %q, got %v", "1", first.Payload)
	}

	second, ok, _ := q.Next(ctx)
	if !ok || second.Payload.(protocol.AudioInput).Content != "2" {
		t.Fatalf("expected second item content %q, got %v", "2", second.Payload)
	}
}

func TestEnqueue_DropsOldestAudioAtBound(t *testing.T) {
	q := New(2)
	_ = q.Enqueue(audioItem("1"))
	_ = q.Enqueue(audioItem("2"))
	_ = q.Enqueue(audioItem("3")) // should drop "1"

	if q.Len() != 2 {
		t.Fatalf("expected queue depth 2, got %d", q.Len())
	}

	ctx := context.Background()
	first, _, _ := q.Next(ctx)
	if first.Payload.(protocol.AudioInput).Content != "2" {
		t.Fatalf("expected oldest surviving item content %q, got %v", "2", first.Payload)
	}
}

func TestEnqueue_NeverDropsNonAudio(t *testing.T) {
	q := New(1)
	_ = q.Enqueue(audioItem("1"))
	_ = q.Enqueue(textItem()) // bound exceeded, but textInput must survive

	if q.Len() != 2 {
		t.Fatalf("expected both items retained, got depth %d", q.Len())
	}
}

func TestEnqueue_AfterCloseReturnsErrClosed(t *testing.T) {
	q := New(10)
	q.Close()
	if err := q.Enqueue(textItem()); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestNext_ReturnsFalseWhenClosedAndDrained(t *testing.T) {
	q := New(10)
	q.Close()
	_, ok, reseed := q.Next(context.Background())
	if ok || reseed {
		t.Fatalf("expected (false, false) on closed empty queue")
	}
}

func TestNext_WakesOnEnqueue(t *testing.T) {
	q := New(10)
	done := make(chan protocol.OutboundEvent, 1)
	go func() {
		evt, ok, _ := q.Next(context.Background())
		if ok {
			done <- evt
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_ = q.Enqueue(textItem())

	select {
	case evt := <-done:
		if evt.Kind != protocol.KindTextInput {
			t.Fatalf("expected textInput, got %v", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake within 1s of Enqueue")
	}
}

func TestNext_ClosedUnblocksWaitingConsumer(t *testing.T) {
	q := New(10)
	done := make(chan bool, 1)
	go func() {
		_, ok, _ := q.Next(context.Background())
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected Next to unblock with ok=false on close")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock within 1s of Close")
	}
}
