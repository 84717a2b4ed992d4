package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/logging"
)

// SubscribeDossier streams remote updates for one chambre slot as
// server-sent events. The subscriber passes its session id in ?session=
// so its own saves never come back as events. Archives have no live
// channel and are refused.
func (h *HTTPHandlerImpl) SubscribeDossier(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotId")
	if !dossier.IsChambreSlot(slotID) {
		h.RespondWithError(w, http.StatusBadRequest, "only chambre slots broadcast updates")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.RespondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := r.URL.Query().Get("session")
	sub := h.hub.Subscribe(slotID, sessionID)
	if sub == nil {
		h.RespondWithError(w, http.StatusBadRequest, "subscription refused")
		return
	}
	defer h.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logging.Debug("SSE subscription opened", "slot_id", slotID, "session", sessionID)

	for {
		select {
		case <-r.Context().Done():
			return
		case u, open := <-sub.C:
			if !open {
				return
			}
			frame, err := json.Marshal(map[string]any{
				"slotId":      u.SlotID,
				"displayName": u.DisplayName,
				"record":      u.Record,
			})
			if err != nil {
				logging.Error("Failed to encode SSE frame", "slot_id", u.SlotID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: update\ndata: %s\n\n", frame)
			flusher.Flush()
		}
	}
}
