package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fd1az/fee-advisor/internal/logger"
)

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	b := NewBus()
	b.Publish(Event{Kind: KindProviderSuccess})
	if b.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", b.Dropped())
	}
}

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	b := NewBus()
	a, cancelA := b.Subscribe(4)
	c, cancelC := b.Subscribe(4)
	defer cancelA()
	defer cancelC()

	b.Publish(Event{Kind: KindAnalysisComplete, Payload: "rec"})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Kind != KindAnalysisComplete || e.At.IsZero() {
				t.Errorf("unexpected event %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBus_FullBufferDropsWithoutBlocking(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Kind: KindProviderFailure, Attempt: i + 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if b.Dropped() != 9 {
		t.Errorf("Dropped = %d, want 9", b.Dropped())
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}
	b.Publish(Event{Kind: KindProviderSuccess})
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink_ForwardsEvents(t *testing.T) {
	b := NewBus()
	sub, cancel := b.Subscribe(8)
	w := &fakeWriter{}
	sink := NewKafkaSink(w, logger.Nop())

	done := make(chan struct{})
	go func() {
		sink.Run(context.Background(), sub)
		close(done)
	}()

	b.Publish(Event{Kind: KindProviderFailure, Provider: "etherscan", EndpointKind: "gas", Attempt: 2, Err: errors.New("boom")})
	cancel()
	<-done

	if len(w.msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "etherscan" {
		t.Errorf("key = %q, want etherscan", w.msgs[0].Key)
	}
	var decoded map[string]any
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["error"] != "boom" || decoded["kind"] != "providerFailure" {
		t.Errorf("unexpected payload %v", decoded)
	}
}

func TestKafkaSink_WriteFailureIsSwallowed(t *testing.T) {
	sub := make(chan Event, 1)
	sub <- Event{Kind: KindAnalysisFailed}
	close(sub)

	sink := NewKafkaSink(&fakeWriter{err: errors.New("broker down")}, logger.Nop())
	sink.Run(context.Background(), sub)
}
