package dossier

import (
	"strings"
	"time"
)

// Form is the snapshot of the on-screen state: every editable field plus
// the four structured collections, with dates spelled the way the inputs
// show them. The rendering layer owns a Form; the codec converts it to and
// from the persisted Record.
type Form struct {
	Fields            map[string]string
	Observations      []FormEntry
	Transmissions     []FormEntry
	Prescriptions     []FormPrescription
	Biologie          FormBiologie
	Pancarte          map[string][]string
	Glycemie          map[string][]string
	DiagramCheckboxes []bool
	DiagramRows       string
	ComptesRendus     map[string]string
}

// FormEntry mirrors TimelineEntry with the date as a YYYY-MM-DD input value.
type FormEntry struct {
	Author string
	Text   string
	Date   string
}

// FormPrescription mirrors Prescription with the date as an input value.
type FormPrescription struct {
	Name      string
	Posologie string
	Voie      string
	Type      PrescriptionType
	Date      string
	Bars      []Bar
}

// FormBiologie holds the lab columns with per-column date inputs.
type FormBiologie struct {
	Dates    []string
	Analyses map[string][]string
}

// NewForm returns a form with all collections allocated, the state a fresh
// or cleared screen presents.
func NewForm() *Form {
	return &Form{
		Fields:        make(map[string]string),
		Observations:  []FormEntry{},
		Transmissions: []FormEntry{},
		Prescriptions: []FormPrescription{},
		Biologie: FormBiologie{
			Dates:    []string{},
			Analyses: make(map[string][]string),
		},
		Pancarte:      make(map[string][]string),
		Glycemie:      make(map[string][]string),
		ComptesRendus: make(map[string]string),
	}
}

// Reset clears the form back to its default empty state.
func (f *Form) Reset() {
	*f = *NewForm()
}

// EntryDate returns the anchor date currently held by the entry-date field,
// or the zero time when the field is absent or malformed.
func (f *Form) EntryDate() time.Time {
	return ParseDateInput(f.Fields[EntryDateField])
}

// PatientDisplayName derives the sidebar display name from the identity
// fields.
func (f *Form) PatientDisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(f.Fields["prenom"]) + " " + strings.TrimSpace(f.Fields["nom"]))
}
