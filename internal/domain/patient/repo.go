package patient

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	// Upsert inserts p or, when (owner_id, name_key) already exists, overwrites
	// every demographic field that is set on p. Unset fields keep their
	// stored values. p.ID is set to the resolved row id.
	Upsert(ctx context.Context, p *Patient) (UpsertResult, error)
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*Patient, int, error)
	ListWithVisits(ctx context.Context, ownerID string) ([]*WithVisits, error)
}
