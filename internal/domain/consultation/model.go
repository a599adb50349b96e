package consultation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const StatusCompleted Status = "completed"

// Provenance tells operator-authored narrative apart from placeholder
// content the import pipeline wrote on its own.
type Provenance string

const (
	ProvenanceImported        Provenance = "imported"
	ProvenanceSystemGenerated Provenance = "system_generated"
)

// Consultation maps to the consultation table. Rows are append-only.
type Consultation struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	OwnerID    string          `db:"owner_id" json:"owner_id"`
	PatientID  uuid.UUID       `db:"patient_id" json:"patient_id"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	Summary    string          `db:"summary" json:"summary"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	Status     Status          `db:"status" json:"status"`
	Provenance Provenance      `db:"provenance" json:"provenance"`
}
