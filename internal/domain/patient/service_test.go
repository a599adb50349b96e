package patient

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Upsert(_ context.Context, p *Patient) (UpsertResult, error) {
	for _, existing := range m.patients {
		if existing.OwnerID == p.OwnerID && NameKey(existing.Name) == NameKey(p.Name) {
			existing.Name = CleanName(p.Name)
			existing.UpdatedAt = time.Now()
			p.ID = existing.ID
			return UpsertResult{ID: existing.ID}, nil
		}
	}
	p.ID = uuid.New()
	p.Name = CleanName(p.Name)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = p
	return UpsertResult{ID: p.ID, Created: true}, nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, ownerID string, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.OwnerID != ownerID {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPatientRepo) List(_ context.Context, ownerID string, limit, offset int) ([]*Patient, int, error) {
	var all []*Patient
	for _, p := range m.patients {
		if p.OwnerID == ownerID {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return NameKey(all[i].Name) < NameKey(all[j].Name) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *mockPatientRepo) ListWithVisits(ctx context.Context, ownerID string) ([]*WithVisits, error) {
	items, _, _ := m.List(ctx, ownerID, len(m.patients), 0)
	out := make([]*WithVisits, len(items))
	for i, p := range items {
		out[i] = &WithVisits{Patient: *p}
	}
	return out, nil
}

func newTestService() *Service {
	return NewService(newMockPatientRepo())
}

func seed(t *testing.T, s *Service, owner string, names ...string) []*Patient {
	t.Helper()
	var out []*Patient
	for _, n := range names {
		p := &Patient{OwnerID: owner, Name: n}
		if _, err := s.patients.Upsert(context.Background(), p); err != nil {
			t.Fatalf("seed %s: %v", n, err)
		}
		out = append(out, p)
	}
	return out
}

func TestService_GetPatient(t *testing.T) {
	svc := newTestService()
	p := seed(t, svc, "dr-ruiz", "Ana Ruiz")[0]

	got, err := svc.GetPatient(context.Background(), "dr-ruiz", p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Ana Ruiz" {
		t.Errorf("expected Ana Ruiz, got %s", got.Name)
	}

	if _, err := svc.GetPatient(context.Background(), "someone-else", p.ID); err == nil {
		t.Error("expected not found for another owner")
	}
}

func TestService_OwnerRequired(t *testing.T) {
	svc := newTestService()
	if _, err := svc.GetPatient(context.Background(), "", uuid.New()); err == nil {
		t.Error("expected error for empty owner")
	}
	if _, _, err := svc.ListPatients(context.Background(), "", 10, 0); err == nil {
		t.Error("expected error for empty owner")
	}
}

func TestService_ListPatients(t *testing.T) {
	svc := newTestService()
	seed(t, svc, "dr-ruiz", "Luis Gómez", "Ana Ruiz", "Eva Sol")
	seed(t, svc, "other", "Zoe")

	items, total, err := svc.ListPatients(context.Background(), "dr-ruiz", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(items) != 2 || items[0].Name != "Ana Ruiz" {
		t.Errorf("unexpected page: %+v", items)
	}
}
