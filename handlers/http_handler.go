// Package handlers provides HTTP request handlers for the dossier API
// endpoints: slot fetch/save, archive management, listing, export and the
// per-slot SSE update stream, with input validation and error handling.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/interfaces"
	"github.com/ifsi-tools/dossier-api/logging"
	"github.com/ifsi-tools/dossier-api/metrics"
	"github.com/ifsi-tools/dossier-api/session"
	"github.com/ifsi-tools/dossier-api/store"
	"github.com/ifsi-tools/dossier-api/validation"
)

// HTTPHandlerImpl serves the dossier API with injected dependencies.
type HTTPHandlerImpl struct {
	store     interfaces.RecordStore
	validator interfaces.DossierValidator
	hub       *session.Hub
	health    interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(recordStore interfaces.RecordStore, validator interfaces.DossierValidator, hub *session.Hub, health interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		store:     recordStore,
		validator: validator,
		hub:       hub,
		health:    health,
	}
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// GetDossier returns the record stored under a slot or archive id. A slot
// that was never saved yields an empty object, not a 404: the client
// treats it as a cleared screen.
func (h *HTTPHandlerImpl) GetDossier(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotId")
	if err := h.validator.ValidateSlotID(slotID); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.store.FetchRecord(slotID)
	if err != nil {
		logging.Error("Failed to fetch record", "slot_id", slotID, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not load the record")
		return
	}
	metrics.LoadsTotal.Inc()

	h.RespondWithJSON(w, http.StatusOK, record)
}

// SaveDossier persists the posted record under a chambre slot and fans it
// out to the slot's subscribers. The writer identifies its session with
// the X-Session-ID header so its own SSE stream skips the echo.
func (h *HTTPHandlerImpl) SaveDossier(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotId")
	if err := h.validator.ValidateSlotID(slotID); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	if err := h.validator.ValidateImport(body); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Document must be a JSON object")
		return
	}

	record, err := dossier.DecodeRecord(body, time.Time{})
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validator.ValidateRecord(record); err != nil {
		h.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	displayName := r.URL.Query().Get("name")
	if displayName == "" {
		displayName = record.SidebarPatientName
	}

	if err := h.store.SaveRecord(slotID, record, displayName); err != nil {
		if errors.Is(err, store.ErrNotAChambre) {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.Error("Failed to save record", "slot_id", slotID, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not save the record")
		return
	}
	metrics.SavesTotal.WithLabelValues("slot").Inc()

	h.hub.Publish(session.Update{
		SlotID:      slotID,
		SessionID:   r.Header.Get("X-Session-ID"),
		DisplayName: displayName,
		Record:      record,
	})

	h.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "saved", "id": slotID})
}

// ListDossiers returns every slot and archive, optionally filtered by an
// accent-insensitive display-name query.
func (h *HTTPHandlerImpl) ListDossiers(w http.ResponseWriter, r *http.Request) {
	slots, err := h.store.ListSlots()
	if err != nil {
		logging.Error("Failed to list slots", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not list the records")
		return
	}

	query := r.URL.Query().Get("q")
	if query != "" {
		filtered := slots[:0]
		for _, s := range slots {
			if validation.MatchesName(s.DisplayName, query) {
				filtered = append(filtered, s)
			}
		}
		slots = filtered
	}

	h.RespondWithJSON(w, http.StatusOK, slots)
}

// CreateArchive snapshots the posted record under a fresh archive id. An
// archive without a patient name is rejected before any write happens.
func (h *HTTPHandlerImpl) CreateArchive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	if err := h.validator.ValidateImport(body); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Document must be a JSON object")
		return
	}

	record, err := dossier.DecodeRecord(body, time.Time{})
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	displayName := r.URL.Query().Get("name")
	if displayName == "" {
		displayName = record.SidebarPatientName
	}
	if err := h.validator.ValidateDisplayName(displayName); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("archive name: %s", err.Error()))
		return
	}

	id, err := h.store.SaveArchive(record, displayName)
	if err != nil {
		if errors.Is(err, store.ErrMissingDisplayName) {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.Error("Failed to save archive", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not save the archive")
		return
	}
	metrics.SavesTotal.WithLabelValues("archive").Inc()

	h.RespondWithJSON(w, http.StatusCreated, map[string]string{"id": id, "displayName": displayName})
}

// DeleteArchive removes an archive.
func (h *HTTPHandlerImpl) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	archiveID := chi.URLParam(r, "archiveId")
	if !dossier.IsArchiveID(archiveID) {
		h.RespondWithError(w, http.StatusBadRequest, "invalid archive id")
		return
	}

	if err := h.store.DeleteArchive(archiveID); err != nil {
		logging.Error("Failed to delete archive", "archive_id", archiveID, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not delete the archive")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": archiveID})
}

// ExportDossier serves the record as a standalone downloadable document.
func (h *HTTPHandlerImpl) ExportDossier(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotId")
	if err := h.validator.ValidateSlotID(slotID); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.store.FetchRecord(slotID)
	if err != nil {
		logging.Error("Failed to fetch record for export", "slot_id", slotID, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Could not load the record")
		return
	}

	data, err := dossier.EncodeRecord(record)
	if err != nil {
		h.RespondWithError(w, http.StatusInternalServerError, "Could not encode the record")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", slotID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HealthCheck reports store and channel health.
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.health.HealthCheck()
	payload := map[string]any{"status": status}
	for k, v := range details {
		payload[k] = v
	}
	h.RespondWithJSON(w, httpStatus, payload)
}
