package interchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/interchange/internal/domain/consultation"
	"github.com/clinic/interchange/internal/domain/patient"
)

type memKey struct {
	owner string
	name  string
}

// MemoryStore is an in-process PatientStore, ConsultationStore and
// ExportSource with the same merge rules as the Postgres repositories. It
// backs dry runs and tests.
type MemoryStore struct {
	mu            sync.Mutex
	patients      map[memKey]*patient.Patient
	byID          map[uuid.UUID]*patient.Patient
	consultations []*consultation.Consultation
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients: make(map[memKey]*patient.Patient),
		byID:     make(map[uuid.UUID]*patient.Patient),
		now:      time.Now,
	}
}

func (s *MemoryStore) Upsert(_ context.Context, p *patient.Patient) (patient.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := patient.CleanName(p.Name)
	key := memKey{owner: p.OwnerID, name: patient.NameKey(name)}
	now := s.now()

	stored, ok := s.patients[key]
	if !ok {
		stored = &patient.Patient{
			ID:        uuid.New(),
			OwnerID:   p.OwnerID,
			Gender:    patient.GenderOther,
			CreatedAt: now,
		}
		s.patients[key] = stored
		s.byID[stored.ID] = stored
	}
	stored.Name = name
	if p.Phone != nil {
		stored.Phone = p.Phone
	}
	if p.Email != nil {
		stored.Email = p.Email
	}
	if p.BirthDate != nil {
		stored.BirthDate = p.BirthDate
	}
	if p.Gender != "" {
		stored.Gender = p.Gender
	}
	stored.UpdatedAt = now

	p.ID = stored.ID
	p.Name = name
	return patient.UpsertResult{ID: stored.ID, Created: !ok}, nil
}

func (s *MemoryStore) Insert(_ context.Context, c *consultation.Consultation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[c.PatientID]
	if !ok || p.OwnerID != c.OwnerID {
		return fmt.Errorf("patient %s not found", c.PatientID)
	}
	c.ID = uuid.New()
	if c.Status == "" {
		c.Status = consultation.StatusCompleted
	}
	cp := *c
	s.consultations = append(s.consultations, &cp)
	return nil
}

func (s *MemoryStore) ListWithVisits(_ context.Context, ownerID string) ([]*patient.WithVisits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visits := make(map[uuid.UUID][]time.Time)
	for _, c := range s.consultations {
		visits[c.PatientID] = append(visits[c.PatientID], c.CreatedAt)
	}
	var out []*patient.WithVisits
	for _, p := range s.patients {
		if p.OwnerID != ownerID {
			continue
		}
		out = append(out, &patient.WithVisits{Patient: *p, VisitTimes: visits[p.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := patient.NameKey(out[i].Name), patient.NameKey(out[j].Name)
		if ki != kj {
			return ki < kj
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Patients returns copies of ownerID's patients ordered by name key.
func (s *MemoryStore) Patients(ownerID string) []patient.Patient {
	items, _ := s.ListWithVisits(context.Background(), ownerID)
	out := make([]patient.Patient, len(items))
	for i, p := range items {
		out[i] = p.Patient
	}
	return out
}

// Consultations returns copies of ownerID's consultations in insert order.
func (s *MemoryStore) Consultations(ownerID string) []consultation.Consultation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []consultation.Consultation
	for _, c := range s.consultations {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out
}
