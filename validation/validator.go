// Package validation provides input and record validation for the dossier
// API, plus accent folding for name search.
package validation

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ifsi-tools/dossier-api/dossier"
	"github.com/ifsi-tools/dossier-api/interfaces"
)

// Pre-compiled regex patterns, compiled once at package initialization.
var (
	// Free-form input: alphanumeric + French accents + safe punctuation
	inputRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+',àâäéèêëïîôöùûüÿçÀÂÉÈÊËÎÏÔÙÛÜÇ]+$`)

	// chambre_<number>
	chambreRegex = regexp.MustCompile(`^chambre_[0-9]{1,4}$`)

	// save_<opaque id>; ids are generated UUIDs but older archives used
	// shorter tokens, so only the alphabet is constrained.
	archiveRegex = regexp.MustCompile(`^save_[A-Za-z0-9\-]{4,64}$`)

	// Dangerous substrings checked before any free text reaches storage.
	// strings.Contains is much faster than regex for plain substrings.
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "@import", "binding(", "behavior(",
	}
)

// DossierValidatorImpl implements the interfaces.DossierValidator interface
type DossierValidatorImpl struct{}

// NewDossierValidator creates a new validator
func NewDossierValidator() interfaces.DossierValidator {
	return &DossierValidatorImpl{}
}

// ValidateSlotID checks that id names either a chambre slot or an archive.
func (v *DossierValidatorImpl) ValidateSlotID(id string) error {
	if id == "" {
		return fmt.Errorf("slot id is empty")
	}
	if chambreRegex.MatchString(id) || archiveRegex.MatchString(id) {
		return nil
	}
	return fmt.Errorf("invalid slot id: %s", id)
}

// ValidateDisplayName checks a patient or archive display name.
func (v *DossierValidatorImpl) ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is empty")
	}
	if len(name) > 120 {
		return fmt.Errorf("display name too long: %d characters", len(name))
	}
	return v.ValidateInput(name)
}

// ValidateImport rejects documents whose top level is not a JSON object,
// before any partial apply can happen.
func (v *DossierValidatorImpl) ValidateImport(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return dossier.ErrMalformedDocument
	}
	return nil
}

// ValidateRecord checks the structural invariants of a record: bar
// geometry stays inside the grid, biologie keeps at most six columns, and
// vitals series keep the fixed slot count.
func (v *DossierValidatorImpl) ValidateRecord(r *dossier.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}

	for pi, p := range r.Prescriptions {
		for bi, bar := range p.Bars {
			if bar.Left < 0 || bar.Width < 0 {
				return fmt.Errorf("prescription %d bar %d has negative geometry", pi, bi)
			}
			if bar.Left+bar.Width > 100.0001 {
				return fmt.Errorf("prescription %d bar %d extends past the grid: left=%.4f width=%.4f",
					pi, bi, bar.Left, bar.Width)
			}
			if p.Type == dossier.PrescriptionMarqueur && bar.Width != 0 {
				return fmt.Errorf("prescription %d is a marker row but bar %d has width %.4f",
					pi, bi, bar.Width)
			}
		}
	}

	if len(r.Biologie.DateOffsets) > dossier.BiologieColumns {
		return fmt.Errorf("biologie has %d date columns, maximum is %d",
			len(r.Biologie.DateOffsets), dossier.BiologieColumns)
	}
	for name, values := range r.Biologie.Analyses {
		if len(values) > len(r.Biologie.DateOffsets) {
			return fmt.Errorf("biologie analysis %q has %d values for %d columns",
				name, len(values), len(r.Biologie.DateOffsets))
		}
	}

	for name, values := range r.Pancarte {
		if len(values) != dossier.VitalsSlots {
			return fmt.Errorf("pancarte series %q has %d slots, expected %d",
				name, len(values), dossier.VitalsSlots)
		}
	}
	for name, values := range r.Glycemie {
		if len(values) != dossier.VitalsSlots {
			return fmt.Errorf("glycemie series %q has %d slots, expected %d",
				name, len(values), dossier.VitalsSlots)
		}
	}

	return nil
}

// ValidateInput validates user input strings against injection patterns.
func (v *DossierValidatorImpl) ValidateInput(input string) error {
	if input == "" {
		return fmt.Errorf("input is empty")
	}
	if len(input) > 500 {
		return fmt.Errorf("input too long: %d characters", len(input))
	}

	lower := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("input contains forbidden sequence")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains unsupported characters")
	}

	return nil
}

// FoldAccents strips diacritics for accent-insensitive comparison, so a
// search for "helene" matches "Hélène".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// MatchesName reports whether the query matches the display name ignoring
// case and accents.
func MatchesName(displayName, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(FoldAccents(displayName), FoldAccents(query))
}
