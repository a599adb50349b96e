package interchange

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"

	"github.com/clinic/interchange/internal/domain/patient"
	"github.com/clinic/interchange/internal/platform/tabular"
)

// NormalizedRow is one import row mapped onto canonical fields. Nil
// pointers and an empty Name mean the source carried no value.
type NormalizedRow struct {
	Line      int
	Name      string
	BirthDate *time.Time
	Age       *int
	// Gender is empty when no gender cell was present; the store then
	// defaults new patients to Other and leaves merged ones untouched.
	Gender    patient.Gender
	Phone     *string
	Email     *string
	Narrative *string
	Visit     VisitDate
	// RawVisit is the sanitized visit-date cell as written in the file.
	RawVisit string
}

// VisitDate is a visit timestamp. Observed is false when the cell was a
// sentinel or unparseable and At was filled with the current time.
type VisitDate struct {
	At       time.Time
	Observed bool
}

var textSentinels = map[string]bool{
	"n/a":       true,
	"na":        true,
	"null":      true,
	"undefined": true,
}

// SanitizeText trims s and reports false for empty cells and the sentinels
// N/A, NA, NULL and undefined, in any case.
func SanitizeText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || textSentinels[strings.ToLower(s)] {
		return "", false
	}
	return s, true
}

// ParseAge strips non-digit characters from s and returns the age when it
// is strictly between 0 and 120. A leading minus sign is rejected.
func ParseAge(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, false
	}
	age, err := strconv.Atoi(digits)
	if err != nil || age <= 0 || age >= 120 {
		return 0, false
	}
	return age, true
}

// BirthDateFromAge approximates a birth date as January 1st of
// now.Year()-age. Day and month cannot be known from an age.
func BirthDateFromAge(age int, now time.Time) time.Time {
	return time.Date(now.Year()-age, time.January, 1, 0, 0, 0, 0, time.UTC)
}

var earliestBirth = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseBirthDate parses an explicit birth-date cell at day precision.
// Day-first is preferred for ambiguous numeric dates. Dates before 1900 or
// after now are rejected.
func ParseBirthDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || isDigits(s) && len(s) <= 3 {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(earliestBirth) || d.After(now) {
		return time.Time{}, false
	}
	return d, true
}

// ResolveBirthDate prefers an explicit birth date and falls back to age.
// A bare number in the birth-date cell counts as an age when there is no
// age value of its own.
func ResolveBirthDate(explicit, age string, hasExplicit, hasAge bool, now time.Time) *time.Time {
	if hasExplicit {
		if d, ok := ParseBirthDate(explicit, now); ok {
			return &d
		}
		if !hasAge && isDigits(strings.TrimSpace(explicit)) {
			age, hasAge = explicit, true
		}
	}
	if hasAge {
		if a, ok := ParseAge(age); ok {
			d := BirthDateFromAge(a, now)
			return &d
		}
	}
	return nil
}

var (
	feminineTokens  = []string{"femenino", "mujer", "female"}
	masculineTokens = []string{"masculino", "hombre", "varon", "male"}
)

// NormalizeGender maps free text onto Male, Female or Other. Whole-word
// tokens are checked before first letters so "mujer" and "female" are not
// read as Male. Empty input is Other.
func NormalizeGender(s string) patient.Gender {
	v := FoldHeader(s)
	if v == "" {
		return patient.GenderOther
	}
	words := strings.FieldsFunc(v, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if containsWord(feminineTokens, w) {
			return patient.GenderFemale
		}
		if containsWord(masculineTokens, w) {
			return patient.GenderMale
		}
	}
	switch {
	case strings.HasPrefix(v, "m"):
		return patient.GenderMale
	case strings.HasPrefix(v, "f"):
		return patient.GenderFemale
	}
	return patient.GenderOther
}

func containsWord(tokens []string, w string) bool {
	for _, t := range tokens {
		if t == w {
			return true
		}
	}
	return false
}

var visitSentinels = map[string]bool{
	"sin historial": true,
	"n/a":           true,
}

// NormalizeVisitDate parses a visit cell in now's location. Sentinels and
// unparseable values return now with Observed false.
func NormalizeVisitDate(s string, now time.Time) VisitDate {
	s, ok := SanitizeText(s)
	if !ok || visitSentinels[strings.ToLower(s)] {
		return VisitDate{At: now}
	}
	t, err := dateparse.ParseIn(s, now.Location(), dateparse.PreferMonthFirst(false))
	if err != nil {
		return VisitDate{At: now}
	}
	return VisitDate{At: t, Observed: true}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Normalize classifies the columns of row and converts their values. When
// several columns map to one field, the rightmost present value wins.
func (c *Classifier) Normalize(headers []string, row tabular.Row, now time.Time) NormalizedRow {
	raw := make(map[Field]string)
	for _, h := range headers {
		f, ok := c.Classify(h)
		if !ok {
			continue
		}
		if v, present := SanitizeText(row.Values[h]); present {
			raw[f] = v
		}
	}

	out := NormalizedRow{Line: row.Line, Name: patient.CleanName(raw[FieldName])}

	birth, hasBirth := raw[FieldBirthDate]
	age, hasAge := raw[FieldAge]
	if hasAge {
		if a, ok := ParseAge(age); ok {
			out.Age = &a
		}
	}
	out.BirthDate = ResolveBirthDate(birth, age, hasBirth, hasAge, now)

	if g, ok := raw[FieldGender]; ok {
		out.Gender = NormalizeGender(g)
	}
	if v, ok := raw[FieldPhone]; ok {
		out.Phone = &v
	}
	if v, ok := raw[FieldEmail]; ok {
		out.Email = &v
	}
	if v, ok := raw[FieldNarrative]; ok {
		out.Narrative = &v
	}
	out.RawVisit = raw[FieldVisitDate]
	out.Visit = NormalizeVisitDate(out.RawVisit, now)
	return out
}
