package dossier

import (
	"sort"
	"time"
)

// Collect reads the whole form and produces the record to persist. Every
// dated sub-entity gets its dateOffset computed against the current
// entry-date field. Collect never mutates the form.
func Collect(f *Form) *Record {
	r := NewRecord()
	entry := f.EntryDate()

	for k, v := range f.Fields {
		r.Fields[k] = v
	}

	r.Observations = collectEntries(f.Observations, entry)
	r.Transmissions = collectEntries(f.Transmissions, entry)

	for _, p := range f.Prescriptions {
		r.Prescriptions = append(r.Prescriptions, Prescription{
			Name:       p.Name,
			Posologie:  p.Posologie,
			Voie:       p.Voie,
			Type:       p.Type,
			DateOffset: DaysOffset(entry, ParseDateInput(p.Date)),
			Bars:       append([]Bar(nil), p.Bars...),
		})
	}
	if r.Prescriptions == nil {
		r.Prescriptions = []Prescription{}
	}

	r.Biologie = collectBiologie(f.Biologie, entry)
	r.Pancarte = collectSeries(f.Pancarte)
	r.Glycemie = collectSeries(f.Glycemie)

	r.DiagramCheckboxes = append([]bool(nil), f.DiagramCheckboxes...)
	r.DiagramRows = f.DiagramRows
	for k, v := range f.ComptesRendus {
		r.ComptesRendus[k] = v
	}
	r.SidebarPatientName = f.PatientDisplayName()

	return r
}

// Apply is the inverse of Collect: it writes the record into the form,
// recomputing every display date from its stored offset. A nil or empty
// record resets the form, which is the normal state of a never-saved slot,
// not an error.
func Apply(r *Record, f *Form) {
	f.Reset()
	if r.IsEmpty() {
		return
	}

	for k, v := range r.Fields {
		f.Fields[k] = v
	}
	entry := f.EntryDate()

	f.Observations = applyEntries(r.Observations, entry)
	f.Transmissions = applyEntries(r.Transmissions, entry)

	for _, p := range r.Prescriptions {
		f.Prescriptions = append(f.Prescriptions, FormPrescription{
			Name:      p.Name,
			Posologie: p.Posologie,
			Voie:      p.Voie,
			Type:      p.Type,
			Date:      FormatDateInput(DateFromOffset(entry, p.DateOffset)),
			Bars:      append([]Bar(nil), p.Bars...),
		})
	}
	if f.Prescriptions == nil {
		f.Prescriptions = []FormPrescription{}
	}

	f.Biologie = applyBiologie(r.Biologie, entry)
	f.Pancarte = collectSeries(r.Pancarte)
	f.Glycemie = collectSeries(r.Glycemie)

	f.DiagramCheckboxes = append([]bool(nil), r.DiagramCheckboxes...)
	f.DiagramRows = r.DiagramRows
	for k, v := range r.ComptesRendus {
		f.ComptesRendus[k] = v
	}
}

// SortEntriesByOffset orders timeline entries by dateOffset. The direction
// is a display preference of the caller, never part of the record.
func SortEntriesByOffset(entries []TimelineEntry, ascending bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		if ascending {
			return entries[i].DateOffset < entries[j].DateOffset
		}
		return entries[i].DateOffset > entries[j].DateOffset
	})
}

func collectEntries(entries []FormEntry, entry time.Time) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, TimelineEntry{
			Author:     e.Author,
			Text:       e.Text,
			DateOffset: DaysOffset(entry, ParseDateInput(e.Date)),
		})
	}
	return out
}

func applyEntries(entries []TimelineEntry, entry time.Time) []FormEntry {
	out := make([]FormEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, FormEntry{
			Author: e.Author,
			Text:   e.Text,
			Date:   FormatDateInput(DateFromOffset(entry, e.DateOffset)),
		})
	}
	return out
}

func collectBiologie(b FormBiologie, entry time.Time) Biologie {
	out := Biologie{
		DateOffsets: []int{},
		Analyses:    make(map[string][]string),
	}
	cols := len(b.Dates)
	if cols > BiologieColumns {
		cols = BiologieColumns
	}
	for i := 0; i < cols; i++ {
		out.DateOffsets = append(out.DateOffsets, DaysOffset(entry, ParseDateInput(b.Dates[i])))
	}
	for name, values := range b.Analyses {
		out.Analyses[name] = normalizeSeries(values, cols)
	}
	return out
}

func applyBiologie(b Biologie, entry time.Time) FormBiologie {
	out := FormBiologie{
		Dates:    []string{},
		Analyses: make(map[string][]string),
	}
	cols := len(b.DateOffsets)
	if cols > BiologieColumns {
		cols = BiologieColumns
	}
	for i := 0; i < cols; i++ {
		out.Dates = append(out.Dates, FormatDateInput(DateFromOffset(entry, b.DateOffsets[i])))
	}
	for name, values := range b.Analyses {
		out.Analyses[name] = normalizeSeries(values, cols)
	}
	return out
}

// collectSeries deep-copies a vitals map, normalizing every parameter to
// the fixed morning/evening/night x 11 days slot count.
func collectSeries(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for name, values := range in {
		out[name] = normalizeSeries(values, VitalsSlots)
	}
	return out
}

// normalizeSeries pads or truncates values to exactly n slots.
func normalizeSeries(values []string, n int) []string {
	out := make([]string, n)
	copy(out, values)
	return out
}
