package interchange

import (
	"context"

	"github.com/clinic/interchange/internal/domain/consultation"
	"github.com/clinic/interchange/internal/domain/patient"
)

// PatientStore creates or merges a patient on (owner, patient.NameKey).
// Implementations must make the call atomic against concurrent writers of
// the same key, overwrite the name and every set demographic field, and
// keep stored values for fields left nil or empty.
type PatientStore interface {
	Upsert(ctx context.Context, p *patient.Patient) (patient.UpsertResult, error)
}

// ConsultationStore only appends.
type ConsultationStore interface {
	Insert(ctx context.Context, c *consultation.Consultation) error
}

// ExportSource lists every patient of an owner with its consultation
// timestamps.
type ExportSource interface {
	ListWithVisits(ctx context.Context, ownerID string) ([]*patient.WithVisits, error)
}

// PatientFromRow builds the upsert payload for an accepted row.
func PatientFromRow(ownerID string, row NormalizedRow) *patient.Patient {
	return &patient.Patient{
		OwnerID:   ownerID,
		Name:      row.Name,
		Phone:     row.Phone,
		Email:     row.Email,
		BirthDate: row.BirthDate,
		Gender:    row.Gender,
	}
}

// Resolve upserts the row's patient. Last write wins on every field the
// row carries.
func Resolve(ctx context.Context, store PatientStore, ownerID string, row NormalizedRow) (patient.UpsertResult, error) {
	res, err := store.Upsert(ctx, PatientFromRow(ownerID, row))
	if err != nil {
		return patient.UpsertResult{}, &StoreWriteError{Line: row.Line, Op: "upsert patient", Err: err}
	}
	return res, nil
}
