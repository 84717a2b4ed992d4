package session

import (
	"sync"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/logging"
	"github.com/ifsi-tools/dossier-api/metrics"
)

// Update is one record broadcast on a slot channel. SessionID identifies
// the writer so subscribers can drop their own echoes.
type Update struct {
	SlotID      string
	SessionID   string
	DisplayName string
	Record      *dossier.Record
}

// Subscription is one live listener on a slot channel. C delivers updates
// from other sessions; the subscriber's own publishes never appear on it.
type Subscription struct {
	C chan Update

	slotID    string
	sessionID string
	hub       *Hub
}

// SlotID returns the slot this subscription listens on.
func (s *Subscription) SlotID() string { return s.slotID }

// Hub is the in-process broadcast channel: per-slot fan-out of record
// updates. Only chambre slots carry subscriptions; archives are immutable
// and never broadcast.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a listener on a slot channel. Subscribing to a
// non-chambre id returns nil: archives have no live channel.
func (h *Hub) Subscribe(slotID, sessionID string) *Subscription {
	if !dossier.IsChambreSlot(slotID) {
		return nil
	}
	sub := &Subscription{
		C:         make(chan Update, 8),
		slotID:    slotID,
		sessionID: sessionID,
		hub:       h,
	}

	h.mu.Lock()
	if h.subs[slotID] == nil {
		h.subs[slotID] = make(map[*Subscription]struct{})
	}
	h.subs[slotID][sub] = struct{}{}
	h.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if set, ok := h.subs[sub.slotID]; ok {
		if _, member := set[sub]; member {
			delete(set, sub)
			close(sub.C)
			metrics.ActiveSubscriptions.Dec()
		}
		if len(set) == 0 {
			delete(h.subs, sub.slotID)
		}
	}
	h.mu.Unlock()
}

// Publish fans an update out to every subscriber of the slot except the
// writer itself. A slow subscriber drops the frame rather than blocking
// the writer; the next save supersedes it anyway (last writer wins).
func (h *Hub) Publish(u Update) {
	if !dossier.IsChambreSlot(u.SlotID) {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[u.SlotID] {
		if sub.sessionID != "" && sub.sessionID == u.SessionID {
			continue
		}
		select {
		case sub.C <- u:
			metrics.BroadcastsTotal.Inc()
		default:
			logging.Warn("Dropped broadcast frame for slow subscriber",
				"slot_id", u.SlotID)
		}
	}
}

// HasSubscribers reports whether any session is live on the slot channel.
func (h *Hub) HasSubscribers(slotID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[slotID]) > 0
}

// SubscriberCount returns the number of live subscriptions across slots.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
