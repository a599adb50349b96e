package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	patients PatientRepository
}

func NewService(patients PatientRepository) *Service {
	return &Service{patients: patients}
}

func (s *Service) GetPatient(ctx context.Context, ownerID string, id uuid.UUID) (*Patient, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner is required")
	}
	return s.patients.GetByID(ctx, ownerID, id)
}

func (s *Service) ListPatients(ctx context.Context, ownerID string, limit, offset int) ([]*Patient, int, error) {
	if ownerID == "" {
		return nil, 0, fmt.Errorf("owner is required")
	}
	return s.patients.List(ctx, ownerID, limit, offset)
}
