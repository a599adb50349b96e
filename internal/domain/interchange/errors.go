package interchange

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a row-level entry in BatchResult.Errors.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindStoreWrite ErrorKind = "store_write"
)

// FileParseError aborts an import before any row is processed.
type FileParseError struct {
	File string
	Err  error
}

func (e *FileParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("interchange: cannot parse file: %v", e.Err)
	}
	return fmt.Sprintf("interchange: cannot parse %s: %v", e.File, e.Err)
}

func (e *FileParseError) Unwrap() error { return e.Err }

// AuthError is returned when no authenticated owner is available.
type AuthError struct{}

func (e *AuthError) Error() string { return "interchange: no authenticated owner" }

// RowValidationError describes a row that was skipped.
type RowValidationError struct {
	Line   int
	Reason RejectReason
}

func (e *RowValidationError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// StoreWriteError wraps a failed patient or consultation write for one row.
type StoreWriteError struct {
	Line int
	Op   string
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// RowError is the serializable form of a non-fatal row failure.
type RowError struct {
	Kind   ErrorKind `json:"kind"`
	Line   int       `json:"line"`
	Reason string    `json:"reason"`
}

func rowError(err error) RowError {
	var verr *RowValidationError
	if errors.As(err, &verr) {
		return RowError{Kind: KindValidation, Line: verr.Line, Reason: string(verr.Reason)}
	}
	var serr *StoreWriteError
	if errors.As(err, &serr) {
		return RowError{Kind: KindStoreWrite, Line: serr.Line, Reason: serr.Error()}
	}
	return RowError{Kind: KindStoreWrite, Reason: err.Error()}
}

// IsFatal reports whether err aborts a whole batch.
func IsFatal(err error) bool {
	var perr *FileParseError
	var aerr *AuthError
	return errors.As(err, &perr) || errors.As(err, &aerr)
}
