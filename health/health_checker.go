// Package health provides health checking functionality for the dossier API.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/ifsi-tools/dossier-api/interfaces"
	"github.com/ifsi-tools/dossier-api/scheduler"
	"github.com/ifsi-tools/dossier-api/session"
)

// Compile-time check to ensure HealthCheckerImpl implements HealthChecker
var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store interfaces.RecordStore
	hub   *session.Hub
	start time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(store interfaces.RecordStore, hub *session.Hub) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		store: store,
		hub:   hub,
		start: time.Now(),
	}
}

// HealthCheck returns current system health. The store being unreachable
// is the only unhealthy condition; an empty store is a fresh install, not
// a failure.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	slots, err := h.store.ListSlots()

	switch {
	case err != nil:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"slot_count":    len(slots),
		"subscriptions": h.hub.SubscriberCount(),
		"uptime_hours":  math.Round(time.Since(h.start).Hours()*10) / 10,
		"next_backup":   scheduler.CalculateNextBackup().Format(time.RFC3339),
	}
	if err != nil {
		data["store_error"] = err.Error()
	}

	return status, data, httpStatus
}

// CalculateNextBackup returns the next scheduled backup time.
func (h *HealthCheckerImpl) CalculateNextBackup() time.Time {
	return scheduler.CalculateNextBackup()
}
