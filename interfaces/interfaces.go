// Package interfaces defines core abstractions for the dossier API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"time"

	"github.com/ifsi-tools/dossier-api/dossier"
)

// SlotInfo describes one slot or archive for listing purposes.
type SlotInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// RecordStore defines the contract for dossier persistence. A missing slot
// is not an error: FetchRecord returns an empty record for it, which the
// caller treats as a cleared screen.
type RecordStore interface {
	// FetchRecord loads the record stored under slotID, or an empty record
	// when the slot was never saved.
	FetchRecord(slotID string) (*dossier.Record, error)

	// SaveRecord persists a record under a chambre slot id.
	SaveRecord(slotID string, r *dossier.Record, displayName string) error

	// SaveArchive creates a named immutable-identity snapshot and returns
	// its generated archive id.
	SaveArchive(r *dossier.Record, displayName string) (string, error)

	// DeleteArchive removes an archive. Chambre slots are never deleted,
	// only overwritten.
	DeleteArchive(archiveID string) error

	// ListSlots returns every known slot and archive with display names.
	ListSlots() ([]SlotInfo, error)

	// LastSaved returns the time of the most recent save for a slot, or the
	// zero time when the slot was never saved.
	LastSaved(slotID string) time.Time
}

// DossierValidator defines the contract for validation operations run
// before anything touches the store or the active record.
type DossierValidator interface {
	// ValidateSlotID checks the shape of a slot or archive identifier.
	ValidateSlotID(id string) error

	// ValidateDisplayName checks a patient/archive display name.
	ValidateDisplayName(name string) error

	// ValidateImport rejects documents that are not a JSON object at the
	// top level, before any partial apply can happen.
	ValidateImport(data []byte) error

	// ValidateRecord checks record invariants: bar geometry bounds, column
	// counts, series lengths.
	ValidateRecord(r *dossier.Record) error

	// ValidateInput validates free-form user input strings.
	ValidateInput(input string) error
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns current system health status.
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextBackup returns the next scheduled backup time.
	CalculateNextBackup() time.Time
}
