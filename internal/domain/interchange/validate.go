package interchange

import "unicode/utf8"

// RejectReason explains why a row was skipped.
type RejectReason string

const (
	ReasonMissingName  RejectReason = "name is missing"
	ReasonNameTooShort RejectReason = "name is shorter than 2 characters"
)

const minNameLength = 2

// Validation is the outcome of checking a normalized row. Reason is empty
// when the row is accepted.
type Validation struct {
	Row    NormalizedRow
	Reason RejectReason
}

func (v Validation) OK() bool { return v.Reason == "" }

// Err returns the rejection as a RowValidationError, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return &RowValidationError{Line: v.Row.Line, Reason: v.Reason}
}

// Validate requires a name of at least two characters. No other field is
// mandatory.
func Validate(row NormalizedRow) Validation {
	switch {
	case row.Name == "":
		return Validation{Row: row, Reason: ReasonMissingName}
	case utf8.RuneCountInString(row.Name) < minNameLength:
		return Validation{Row: row, Reason: ReasonNameTooShort}
	}
	return Validation{Row: row}
}
