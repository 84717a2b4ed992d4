package main

import (
	"testing"
	"time"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/timeline"
	"github.com/ifsi-tools/dossier-api/validation"
)

func benchmarkForm() *dossier.Form {
	f := dossier.NewForm()
	f.Fields[dossier.EntryDateField] = "2025-11-08"
	f.Fields["nom"] = "Martin"
	f.Fields["prenom"] = "Hélène"
	for i := 0; i < 20; i++ {
		f.Observations = append(f.Observations, dossier.FormEntry{
			Author: "IDE Dupont", Text: "Observation du jour", Date: "2025-11-10",
		})
	}
	for i := 0; i < 10; i++ {
		f.Prescriptions = append(f.Prescriptions, dossier.FormPrescription{
			Name: "Amoxicilline", Type: dossier.PrescriptionAutre, Date: "2025-11-09",
			Bars: []dossier.Bar{{Left: 10, Width: 5}, {Left: 40, Width: 8}},
		})
	}
	f.Pancarte["temperature"] = make([]string, dossier.VitalsSlots)
	return f
}

func BenchmarkCollect(b *testing.B) {
	f := benchmarkForm()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dossier.Collect(f)
	}
}

func BenchmarkApply(b *testing.B) {
	r := dossier.Collect(benchmarkForm())
	f := dossier.NewForm()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dossier.Apply(r, f)
	}
}

func BenchmarkEncodeDecodeRecord(b *testing.B) {
	r := dossier.Collect(benchmarkForm())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := dossier.EncodeRecord(r)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := dossier.DecodeRecord(data, time.Time{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSnap(b *testing.B) {
	g := timeline.Grid{WidthPx: 2200}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Snap(g.PercentAt(float64(i % 2200)))
	}
}

func BenchmarkFoldAccents(b *testing.B) {
	for i := 0; i < b.N; i++ {
		validation.FoldAccents("Hélène Martin-Lefèvre")
	}
}
