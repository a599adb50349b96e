package interchange

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/interchange/internal/domain/consultation"
)

// PlaceholderSummary marks a consultation whose only evidence was a visit
// date.
const PlaceholderSummary = "Registro importado desde respaldo administrativo."

// importPayload is stored verbatim in consultation.payload.
type importPayload struct {
	Source       string `json:"source"`
	SourceFile   string `json:"source_file,omitempty"`
	SourceLine   int    `json:"source_line"`
	VisitDateRaw string `json:"visit_date_raw,omitempty"`
}

// Synthesize decides whether row yields a consultation. A narrative is
// carried over as imported; an observed visit date alone produces a
// system_generated placeholder; otherwise it returns nil.
func Synthesize(ownerID string, patientID uuid.UUID, row NormalizedRow, sourceFile string, now time.Time) *consultation.Consultation {
	c := &consultation.Consultation{
		OwnerID:   ownerID,
		PatientID: patientID,
		Status:    consultation.StatusCompleted,
		CreatedAt: now,
	}
	if row.Visit.Observed {
		c.CreatedAt = row.Visit.At
	}

	switch {
	case row.Narrative != nil:
		c.Summary = *row.Narrative
		c.Provenance = consultation.ProvenanceImported
	case row.Visit.Observed:
		c.Summary = PlaceholderSummary
		c.Provenance = consultation.ProvenanceSystemGenerated
	default:
		return nil
	}

	payload, err := json.Marshal(importPayload{
		Source:       "import",
		SourceFile:   sourceFile,
		SourceLine:   row.Line,
		VisitDateRaw: row.RawVisit,
	})
	if err == nil {
		c.Payload = payload
	}
	return c
}
