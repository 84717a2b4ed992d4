// Package dossier defines the patient-record data model and the codec
// converting between the on-screen form state and the persisted record.
// All dates inside a record are stored as whole-day offsets relative to the
// record's entry date, so editing the entry date re-dates the whole dossier
// without touching any nested structure.
package dossier

import "strings"

// Slot identifier prefixes. Chambre slots are durable numbered containers
// whose content is replaceable; archives are immutable-identity snapshots.
const (
	ChambrePrefix = "chambre_"
	ArchivePrefix = "save_"
)

// EntryDateField is the field identifier of the anchor date input.
const EntryDateField = "entry-date"

// Grid dimensions shared by the timeline and the vitals charts.
const (
	GridDays          = 11
	VitalsSlotsPerDay = 3 // matin / soir / nuit
	VitalsSlots       = GridDays * VitalsSlotsPerDay
	BiologieColumns   = 6
)

// PrescriptionType discriminates how a prescription row renders its
// administrations on the timeline.
type PrescriptionType string

const (
	// PrescriptionContinue renders administrations as resizable bars
	// (continuous infusion).
	PrescriptionContinue PrescriptionType = "continu"
	// PrescriptionMarqueur renders zero-width point events; marker rows are
	// never resizable.
	PrescriptionMarqueur PrescriptionType = "marqueur"
	// PrescriptionAutre covers everything else (per-os, injections with a
	// duration, ...); rendered as bars.
	PrescriptionAutre PrescriptionType = "autre"
)

// TimelineEntry is a dated free-text note. Observations and transmissions
// share the shape but are distinct streams.
type TimelineEntry struct {
	Author     string `json:"author"`
	Text       string `json:"text"`
	DateOffset int    `json:"dateOffset"`
}

// Bar is an administration span on the prescription timeline, positioned in
// percentages of the total grid width for resolution independence.
// Invariant: 0 <= Left, Left+Width <= 100. Marker rows keep Width == 0.
type Bar struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
	Title string  `json:"title"`
}

// Prescription is one medication row of the timeline.
type Prescription struct {
	Name       string           `json:"name"`
	Posologie  string           `json:"posologie"`
	Voie       string           `json:"voie"`
	Type       PrescriptionType `json:"type"`
	DateOffset int              `json:"dateOffset"`
	Bars       []Bar            `json:"bars"`
}

// Biologie holds up to six lab-draw columns; analysis values align with the
// date columns by index.
type Biologie struct {
	DateOffsets []int               `json:"dateOffsets"`
	Analyses    map[string][]string `json:"analyses"`
}

// Record is the unit of persistence for one patient slot or one archive.
// Absolute calendar dates are never stored here (except inside legacy
// documents, migrated at load time); offsets are canonical.
type Record struct {
	Fields             map[string]string   `json:"fields"`
	Observations       []TimelineEntry     `json:"observations"`
	Transmissions      []TimelineEntry     `json:"transmissions"`
	Prescriptions      []Prescription      `json:"prescriptions"`
	Biologie           Biologie            `json:"biologie"`
	Pancarte           map[string][]string `json:"pancarte"`
	Glycemie           map[string][]string `json:"glycemie"`
	DiagramCheckboxes  []bool              `json:"careDiagramCheckboxes"`
	DiagramRows        string              `json:"diagramRows,omitempty"`
	ComptesRendus      map[string]string   `json:"comptesRendus"`
	SidebarPatientName string              `json:"sidebar_patient_name"`
}

// NewRecord returns an empty record with all collections allocated.
func NewRecord() *Record {
	return &Record{
		Fields:        make(map[string]string),
		Observations:  []TimelineEntry{},
		Transmissions: []TimelineEntry{},
		Prescriptions: []Prescription{},
		Biologie: Biologie{
			DateOffsets: []int{},
			Analyses:    make(map[string][]string),
		},
		Pancarte:      make(map[string][]string),
		Glycemie:      make(map[string][]string),
		ComptesRendus: make(map[string]string),
	}
}

// IsEmpty reports whether the record carries no data at all. An empty record
// at load time means the slot was never saved; the UI resets to defaults.
func (r *Record) IsEmpty() bool {
	if r == nil {
		return true
	}
	return len(r.Fields) == 0 &&
		len(r.Observations) == 0 &&
		len(r.Transmissions) == 0 &&
		len(r.Prescriptions) == 0 &&
		len(r.Biologie.DateOffsets) == 0 &&
		len(r.Biologie.Analyses) == 0 &&
		len(r.Pancarte) == 0 &&
		len(r.Glycemie) == 0 &&
		len(r.DiagramCheckboxes) == 0 &&
		len(r.ComptesRendus) == 0 &&
		r.SidebarPatientName == ""
}

// IsChambreSlot reports whether id names a durable numbered slot. Only
// chambre slots participate in real-time broadcast.
func IsChambreSlot(id string) bool {
	return strings.HasPrefix(id, ChambrePrefix) && len(id) > len(ChambrePrefix)
}

// IsArchiveID reports whether id names a saved archive.
func IsArchiveID(id string) bool {
	return strings.HasPrefix(id, ArchivePrefix) && len(id) > len(ArchivePrefix)
}
