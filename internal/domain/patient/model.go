package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gender is the canonical administrative gender. The zero value means the
// source did not carry one; stored rows always hold one of the constants.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Patient maps to the patient table.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	OwnerID   string     `db:"owner_id" json:"owner_id"`
	Name      string     `db:"name" json:"name"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender    Gender     `db:"gender" json:"gender"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// NameKey returns the case-normalized form of name used in the
// (owner_id, name_key) uniqueness constraint.
func NameKey(name string) string {
	return strings.ToLower(CleanName(name))
}

// CleanName trims name and collapses runs of inner whitespace.
func CleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// WithVisits is a patient joined with the creation timestamps of its
// consultations, in no particular order.
type WithVisits struct {
	Patient
	VisitTimes []time.Time `json:"visit_times"`
}

// LastVisit returns the latest visit timestamp, or false when the patient
// has no consultations.
func (w *WithVisits) LastVisit() (time.Time, bool) {
	var last time.Time
	for _, t := range w.VisitTimes {
		if t.After(last) {
			last = t
		}
	}
	return last, !last.IsZero()
}

// UpsertResult reports how an upsert resolved against the dedup key.
type UpsertResult struct {
	ID      uuid.UUID
	Created bool
}
