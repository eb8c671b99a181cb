package eventbus

import (
	"testing"

	"github.com/agentcore/core/pkg/models"
)

func TestBus_PublishAssignsMonotoneIDs(t *testing.T) {
	b := New(0, 0)

	r1 := b.Publish("s1", models.Event{Type: models.EventStatus})
	r2 := b.Publish("s1", models.Event{Type: models.EventTextDelta})

	if r1.ID != 1 || r2.ID != 2 {
		t.Errorf("IDs = %d, %d, want 1, 2", r1.ID, r2.ID)
	}
}

func TestBus_SubscribeWithHistory_NilLastID_ReturnsWholeBuffer(t *testing.T) {
	b := New(0, 0)
	b.Publish("s1", models.Event{Type: models.EventStatus})
	b.Publish("s1", models.Event{Type: models.EventTextDelta})

	history, sub := b.SubscribeWithHistory("s1", nil)
	defer sub.Close()

	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
}

func TestBus_SubscribeWithHistory_FiltersByLastEventID(t *testing.T) {
	b := New(0, 0)
	b.Publish("s1", models.Event{Type: models.EventStatus})
	r2 := b.Publish("s1", models.Event{Type: models.EventTextDelta})
	b.Publish("s1", models.Event{Type: models.EventUsage})

	last := r2.ID
	history, sub := b.SubscribeWithHistory("s1", &last)
	defer sub.Close()

	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Event.Type != models.EventUsage {
		t.Errorf("history[0].Event.Type = %v, want %v", history[0].Event.Type, models.EventUsage)
	}
}

func TestBus_LiveSubscriberReceivesPublishedEvents(t *testing.T) {
	b := New(0, 0)
	_, sub := b.SubscribeWithHistory("s1", nil)
	defer sub.Close()

	b.Publish("s1", models.Event{Type: models.EventTextDelta})

	select {
	case r := <-sub.C:
		if r.Event.Type != models.EventTextDelta {
			t.Errorf("Event.Type = %v, want %v", r.Event.Type, models.EventTextDelta)
		}
	default:
		t.Fatal("expected a buffered event on the subscription channel")
	}
}

func TestBus_RingBufferBoundedToHistorySize(t *testing.T) {
	b := New(3, 0)
	for i := 0; i < 10; i++ {
		b.Publish("s1", models.Event{Type: models.EventStatus})
	}

	history, sub := b.SubscribeWithHistory("s1", nil)
	defer sub.Close()

	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].ID != 8 || history[2].ID != 10 {
		t.Errorf("history ids = [%d..%d], want [8..10]", history[0].ID, history[2].ID)
	}
}

func TestBus_DoneClosesSubscriptionAndRejectsLaterPublishes(t *testing.T) {
	b := New(0, 0)
	_, sub := b.SubscribeWithHistory("s1", nil)
	defer sub.Close()

	b.Publish("s1", models.Event{Type: models.EventDone, Done: &models.DoneEvent{Reason: models.DoneCompleted}})

	if _, ok := <-sub.C; !ok {
		t.Fatal("expected Done record before channel closes")
	}
	if _, ok := <-sub.C; ok {
		t.Error("expected channel to be closed after Done")
	}

	r := b.Publish("s1", models.Event{Type: models.EventStatus})
	if r.ID != 0 {
		t.Errorf("publish after Done should be dropped, got record with ID %d", r.ID)
	}
}

func TestBus_SlowSubscriberIsDroppedAndSignalledLagged(t *testing.T) {
	b := New(0, 1)
	_, sub := b.SubscribeWithHistory("s1", nil)
	defer sub.Close()

	// Fill the subscriber's buffer (depth 1), then push past it to force a drop.
	b.Publish("s1", models.Event{Type: models.EventStatus})
	b.Publish("s1", models.Event{Type: models.EventStatus})

	select {
	case <-sub.Lagged:
	default:
		t.Error("expected Lagged to be signalled once the subscriber fell behind")
	}
}

func TestBus_CloseTearsDownLiveSubscribers(t *testing.T) {
	b := New(0, 0)
	_, sub := b.SubscribeWithHistory("s1", nil)

	b.Close("s1")

	if _, ok := <-sub.C; ok {
		t.Error("expected subscription channel to be closed")
	}
}
