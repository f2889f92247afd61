package eventbus

import (
	"testing"
	"time"
)

func TestEventBus_PublishAndSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(TopicAnalysisCreated)

	bus.Publish(TopicAnalysisCreated, AnalysisCreated{AnalysisID: "a1", ClassName: "5th A"})

	select {
	case evt := <-ch:
		if evt.Topic != TopicAnalysisCreated {
			t.Errorf("expected topic %q, got %q", TopicAnalysisCreated, evt.Topic)
		}
		payload, ok := evt.Payload.(AnalysisCreated)
		if !ok {
			t.Fatalf("expected AnalysisCreated payload, got %T", evt.Payload)
		}
		if payload.AnalysisID != "a1" || payload.ClassName != "5th A" {
			t.Errorf("unexpected payload %+v", payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout: expected event to be received within 100ms")
	}
}

func TestEventBus_MultipleSubscribers_AllReceive(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe("multi.topic")
	ch2 := bus.Subscribe("multi.topic")

	bus.Publish("multi.topic", 42)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Payload != 42 {
				t.Errorf("subscriber %d: expected payload 42, got %v", i, evt.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestEventBus_DifferentTopics_NoInterference(t *testing.T) {
	bus := New()
	chA := bus.Subscribe("topic.a")
	chB := bus.Subscribe("topic.b")

	bus.Publish("topic.a", "for-a")

	select {
	case evt := <-chA:
		if evt.Payload != "for-a" {
			t.Errorf("topic.a: unexpected payload %v", evt.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("topic.a: timeout waiting for event")
	}

	select {
	case evt := <-chB:
		t.Errorf("topic.b: received unexpected event: %v", evt)
	default:
	}
}

func TestEventBus_NonBlockingPublish_FullBuffer(t *testing.T) {
	bus := New()
	_ = bus.Subscribe("overflow.topic")

	done := make(chan struct{})
	go func() {
		for i := 0; i <= defaultBufferSize+10; i++ {
			bus.Publish("overflow.topic", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Publish blocked when buffer was full (should be non-blocking)")
	}
}

func TestEventBus_CloseEndsSubscriptions(t *testing.T) {
	bus := New()
	ch := bus.Subscribe("closing.topic")

	bus.Close()
	bus.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel not closed")
	}

	bus.Publish("closing.topic", "ignored")

	late := bus.Subscribe("closing.topic")
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
}
