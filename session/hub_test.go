package session

import (
	"testing"
	"time"

	"github.com/ifsi-tools/dossier-api/dossier"
)

func TestSubscribeNonChambreReturnsNil(t *testing.T) {
	h := NewHub()

	for _, id := range []string{"save_abc123", "chambre_", "", "garbage"} {
		if sub := h.Subscribe(id, "s1"); sub != nil {
			t.Errorf("Expected nil subscription for %q", id)
		}
	}
}

func TestPublishFansOutToOtherSessions(t *testing.T) {
	h := NewHub()
	a := h.Subscribe("chambre_1", "session-a")
	b := h.Subscribe("chambre_1", "session-b")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	record := dossier.NewRecord()
	record.SidebarPatientName = "Hélène Martin"
	h.Publish(Update{SlotID: "chambre_1", SessionID: "session-a", Record: record})

	select {
	case u := <-b.C:
		if u.Record.SidebarPatientName != "Hélène Martin" {
			t.Errorf("Expected the published record, got %+v", u.Record)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the other session to receive the update")
	}

	// The writer's own channel stays empty.
	select {
	case u := <-a.C:
		t.Errorf("Expected no echo to the writer, got %+v", u)
	default:
	}
}

func TestPublishIgnoresOtherSlots(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("chambre_1", "session-a")
	defer h.Unsubscribe(sub)

	h.Publish(Update{SlotID: "chambre_2", SessionID: "session-b", Record: dossier.NewRecord()})
	h.Publish(Update{SlotID: "save_abc123", SessionID: "session-b", Record: dossier.NewRecord()})

	select {
	case u := <-sub.C:
		t.Errorf("Expected nothing on the chambre_1 channel, got %+v", u)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("chambre_1", "session-a")

	h.Unsubscribe(sub)
	if _, ok := <-sub.C; ok {
		t.Error("Expected the channel closed after unsubscribe")
	}

	// Double unsubscribe and nil are harmless.
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)

	if h.HasSubscribers("chambre_1") {
		t.Error("Expected no subscribers left")
	}
}

func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("chambre_1", "session-a")
	defer h.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		// Nobody reads sub.C; publishing past the buffer must drop, not block.
		for i := 0; i < 20; i++ {
			h.Publish(Update{SlotID: "chambre_1", SessionID: "session-b", Record: dossier.NewRecord()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestSubscriberCounts(t *testing.T) {
	h := NewHub()

	if h.SubscriberCount() != 0 {
		t.Error("Expected an empty hub to count zero")
	}

	a := h.Subscribe("chambre_1", "session-a")
	b := h.Subscribe("chambre_2", "session-b")

	if got := h.SubscriberCount(); got != 2 {
		t.Errorf("Expected 2 subscriptions, got %d", got)
	}
	if !h.HasSubscribers("chambre_1") || !h.HasSubscribers("chambre_2") {
		t.Error("Expected both slots reported live")
	}
	if h.HasSubscribers("chambre_3") {
		t.Error("Expected chambre_3 reported idle")
	}

	h.Unsubscribe(a)
	h.Unsubscribe(b)
	if got := h.SubscriberCount(); got != 0 {
		t.Errorf("Expected 0 subscriptions after unsubscribe, got %d", got)
	}
}
