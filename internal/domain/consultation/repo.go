package consultation

import (
	"context"

	"github.com/google/uuid"
)

// ConsultationRepository has no update or delete: consultations are
// append-only.
type ConsultationRepository interface {
	Insert(ctx context.Context, c *Consultation) error
	ListByPatient(ctx context.Context, ownerID string, patientID uuid.UUID) ([]*Consultation, error)
}
