package interchange

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/interchange/internal/domain/consultation"
	"github.com/clinic/interchange/internal/domain/patient"
)

func TestMemoryStore_UpsertDefaultsAndMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	res, err := s.Upsert(ctx, &patient.Patient{OwnerID: owner, Name: " Ana  Ruiz "})
	require.NoError(t, err)
	assert.True(t, res.Created)

	again, err := s.Upsert(ctx, &patient.Patient{OwnerID: owner, Name: "ANA RUIZ", Gender: patient.GenderFemale})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.ID, again.ID)

	pts := s.Patients(owner)
	require.Len(t, pts, 1)
	assert.Equal(t, "ANA RUIZ", pts[0].Name)
	assert.Equal(t, patient.GenderFemale, pts[0].Gender)
}

func TestMemoryStore_InsertRequiresPatient(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Insert(ctx, &consultation.Consultation{OwnerID: owner, PatientID: uuid.New()})
	assert.Error(t, err)

	res, err := s.Upsert(ctx, &patient.Patient{OwnerID: owner, Name: "Ana Ruiz"})
	require.NoError(t, err)
	err = s.Insert(ctx, &consultation.Consultation{OwnerID: "someone-else", PatientID: res.ID})
	assert.Error(t, err, "patient of another owner")

	c := &consultation.Consultation{OwnerID: owner, PatientID: res.ID, Provenance: consultation.ProvenanceImported}
	require.NoError(t, s.Insert(ctx, c))
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, consultation.StatusCompleted, c.Status)

	withVisits, err := s.ListWithVisits(ctx, owner)
	require.NoError(t, err)
	require.Len(t, withVisits, 1)
	assert.Len(t, withVisits[0].VisitTimes, 1)
}
