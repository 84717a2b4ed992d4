package dossier

import (
	"math"
	"time"
)

// Date input format used by the form layer ("YYYY-MM-DD", timezone neutral).
const dateInputLayout = "2006-01-02"

// Display format shown to users ("DD/MM/YYYY").
const displayLayout = "02/01/2006"

// InvalidDateDisplay is the sentinel shown for an absent or invalid date.
const InvalidDateDisplay = "??/??/????"

// DaysOffset returns the whole-day difference between eventDate and
// entryDate. Both dates are anchored at UTC midnight before subtracting so
// that daylight-saving transitions can never produce an off-by-one. Returns
// zero when either input is absent.
func DaysOffset(entryDate, eventDate time.Time) int {
	if entryDate.IsZero() || eventDate.IsZero() {
		return 0
	}
	a := utcMidnight(entryDate)
	b := utcMidnight(eventDate)
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// DateFromOffset adds offsetDays whole days to entryDate using local
// calendar arithmetic, so the derived date matches the user's calendar
// perception even across DST changes. When entryDate is absent the local
// today is used as the anchor.
func DateFromOffset(entryDate time.Time, offsetDays int) time.Time {
	if entryDate.IsZero() {
		entryDate = localMidnight(time.Now())
	}
	return localMidnight(entryDate).AddDate(0, 0, offsetDays)
}

// FormatDisplay renders a date as DD/MM/YYYY, or the "??/??/????" sentinel
// for an absent date.
func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return InvalidDateDisplay
	}
	return t.Format(displayLayout)
}

// FormatDateInput renders a date as YYYY-MM-DD for a date input, or the
// empty string for an absent date.
func FormatDateInput(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateInputLayout)
}

// ParseDateInput parses a YYYY-MM-DD value into a local-midnight date.
// Returns the zero time for empty or malformed input.
func ParseDateInput(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateInputLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseFlexibleDate parses the date spellings found in legacy documents:
// YYYY-MM-DD, DD/MM/YYYY, or RFC 3339. Returns the zero time when nothing
// matches.
func ParseFlexibleDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{dateInputLayout, displayLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return localMidnight(t.Local())
	}
	return time.Time{}
}

// RoundToQuarterHour rounds the minutes of t to the nearest multiple of 15,
// zeroing seconds and sub-second precision.
func RoundToQuarterHour(t time.Time) time.Time {
	t = t.Truncate(time.Second)
	rounded := t.Round(15 * time.Minute)
	return rounded
}

func utcMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func localMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
