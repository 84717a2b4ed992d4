package dossier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedDocument is returned when an imported or stored document is
// not a JSON object at the top level. The active record is never touched in
// that case.
var ErrMalformedDocument = errors.New("dossier: document is not a JSON object")

// Older saves stored absolute dates instead of offsets: observations and
// transmissions carried a "date" string, prescriptions a "startDate", and
// biologie a per-column "dates" array. DecodeRecord migrates those shapes
// in memory once, at the load boundary; nothing downstream ever sees an
// absolute date. The migrated document is only rewritten on disk when the
// record is saved again.

type rawEntry struct {
	Author     string `json:"author"`
	Text       string `json:"text"`
	DateOffset *int   `json:"dateOffset"`
	Date       string `json:"date"`
}

type rawPrescription struct {
	Name       string           `json:"name"`
	Posologie  string           `json:"posologie"`
	Voie       string           `json:"voie"`
	Type       PrescriptionType `json:"type"`
	DateOffset *int             `json:"dateOffset"`
	StartDate  string           `json:"startDate"`
	Date       string           `json:"date"`
	Bars       []Bar            `json:"bars"`
}

type rawBiologie struct {
	DateOffsets []int               `json:"dateOffsets"`
	Dates       []string            `json:"dates"`
	Analyses    map[string][]string `json:"analyses"`
}

type rawRecord struct {
	Fields             map[string]string   `json:"fields"`
	Observations       []rawEntry          `json:"observations"`
	Transmissions      []rawEntry          `json:"transmissions"`
	Prescriptions      []rawPrescription   `json:"prescriptions"`
	Biologie           rawBiologie         `json:"biologie"`
	Pancarte           map[string][]string `json:"pancarte"`
	Glycemie           map[string][]string `json:"glycemie"`
	DiagramCheckboxes  []bool              `json:"careDiagramCheckboxes"`
	DiagramRows        string              `json:"diagramRows"`
	ComptesRendus      map[string]string   `json:"comptesRendus"`
	SidebarPatientName string              `json:"sidebar_patient_name"`
}

// DecodeRecord parses a stored or imported document into the canonical
// current-version record, migrating legacy absolute-date fields to offsets.
// Offsets are computed against the document's own entry-date field when it
// has one, falling back to entryDate otherwise. An empty document decodes
// to an empty record.
func DecodeRecord(data []byte, entryDate time.Time) (*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return NewRecord(), nil
	}
	if trimmed[0] != '{' {
		return nil, ErrMalformedDocument
	}

	var raw rawRecord
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("dossier: decode record: %w", err)
	}

	if docEntry := ParseDateInput(raw.Fields[EntryDateField]); !docEntry.IsZero() {
		entryDate = docEntry
	}

	r := NewRecord()
	for k, v := range raw.Fields {
		r.Fields[k] = v
	}

	for _, e := range raw.Observations {
		r.Observations = append(r.Observations, migrateEntry(e, entryDate))
	}
	for _, e := range raw.Transmissions {
		r.Transmissions = append(r.Transmissions, migrateEntry(e, entryDate))
	}
	for _, p := range raw.Prescriptions {
		r.Prescriptions = append(r.Prescriptions, migratePrescription(p, entryDate))
	}
	r.Biologie = migrateBiologie(raw.Biologie, entryDate)

	for name, values := range raw.Pancarte {
		r.Pancarte[name] = normalizeSeries(values, VitalsSlots)
	}
	for name, values := range raw.Glycemie {
		r.Glycemie[name] = normalizeSeries(values, VitalsSlots)
	}
	r.DiagramCheckboxes = append([]bool(nil), raw.DiagramCheckboxes...)
	r.DiagramRows = raw.DiagramRows
	for k, v := range raw.ComptesRendus {
		r.ComptesRendus[k] = v
	}
	r.SidebarPatientName = raw.SidebarPatientName

	return r, nil
}

// EncodeRecord marshals a record in the canonical current format.
func EncodeRecord(r *Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("dossier: encode record: %w", err)
	}
	return data, nil
}

func migrateEntry(e rawEntry, entry time.Time) TimelineEntry {
	out := TimelineEntry{Author: e.Author, Text: e.Text}
	switch {
	case e.DateOffset != nil:
		out.DateOffset = *e.DateOffset
	case e.Date != "":
		out.DateOffset = DaysOffset(entry, ParseFlexibleDate(e.Date))
	}
	return out
}

func migratePrescription(p rawPrescription, entry time.Time) Prescription {
	out := Prescription{
		Name:      p.Name,
		Posologie: p.Posologie,
		Voie:      p.Voie,
		Type:      p.Type,
		Bars:      append([]Bar(nil), p.Bars...),
	}
	if out.Type == "" {
		out.Type = PrescriptionAutre
	}
	switch {
	case p.DateOffset != nil:
		out.DateOffset = *p.DateOffset
	case p.StartDate != "":
		out.DateOffset = DaysOffset(entry, ParseFlexibleDate(p.StartDate))
	case p.Date != "":
		out.DateOffset = DaysOffset(entry, ParseFlexibleDate(p.Date))
	}
	if out.Bars == nil {
		out.Bars = []Bar{}
	}
	return out
}

func migrateBiologie(b rawBiologie, entry time.Time) Biologie {
	out := Biologie{
		DateOffsets: []int{},
		Analyses:    make(map[string][]string),
	}
	switch {
	case len(b.DateOffsets) > 0:
		out.DateOffsets = append(out.DateOffsets, b.DateOffsets...)
	case len(b.Dates) > 0:
		for _, d := range b.Dates {
			out.DateOffsets = append(out.DateOffsets, DaysOffset(entry, ParseFlexibleDate(d)))
		}
	}
	if len(out.DateOffsets) > BiologieColumns {
		out.DateOffsets = out.DateOffsets[:BiologieColumns]
	}
	cols := len(out.DateOffsets)
	for name, values := range b.Analyses {
		out.Analyses[name] = normalizeSeries(values, cols)
	}
	return out
}
