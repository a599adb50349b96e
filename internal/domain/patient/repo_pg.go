package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/interchange/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `p.id, p.owner_id, p.name, p.phone, p.email, p.birth_date, p.gender,
	p.created_at, p.updated_at`

func scanPatient(row pgx.Row, extra ...interface{}) (*Patient, error) {
	var p Patient
	var gender string
	dest := []interface{}{&p.ID, &p.OwnerID, &p.Name, &p.Phone, &p.Email, &p.BirthDate, &gender,
		&p.CreatedAt, &p.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.Gender = Gender(gender)
	return &p, nil
}

// Upsert relies on the patient_owner_name_key constraint so that two
// sightings of the same key never produce two rows. COALESCE keeps stored
// values for columns the caller left unset. xmax is zero only for a row
// this statement inserted.
func (r *patientRepoPG) Upsert(ctx context.Context, p *Patient) (UpsertResult, error) {
	var gender *string
	if p.Gender != "" {
		g := string(p.Gender)
		gender = &g
	}
	name := CleanName(p.Name)

	var res UpsertResult
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient AS p (id, owner_id, name, name_key, phone, email, birth_date, gender)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::text, 'Other'))
		ON CONFLICT (owner_id, name_key) DO UPDATE SET
			name = EXCLUDED.name,
			phone = COALESCE($5, p.phone),
			email = COALESCE($6, p.email),
			birth_date = COALESCE($7, p.birth_date),
			gender = COALESCE($8::text, p.gender),
			updated_at = NOW()
		RETURNING p.id, (p.xmax = 0)`,
		uuid.New(), p.OwnerID, name, NameKey(name), p.Phone, p.Email, p.BirthDate, gender,
	).Scan(&res.ID, &res.Created)
	if err != nil {
		return UpsertResult{}, err
	}
	p.ID = res.ID
	p.Name = name
	return res, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient p WHERE p.owner_id = $1 AND p.id = $2`, ownerID, id))
}

func (r *patientRepoPG) List(ctx context.Context, ownerID string, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient p
		WHERE p.owner_id = $1 ORDER BY p.name_key, p.id LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// ListWithVisits returns every patient of ownerID with its consultation
// timestamps, ordered by name key then id.
func (r *patientRepoPG) ListWithVisits(ctx context.Context, ownerID string) ([]*WithVisits, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+`,
			COALESCE(array_agg(c.created_at) FILTER (WHERE c.id IS NOT NULL), '{}')
		FROM patient p
		LEFT JOIN consultation c ON c.patient_id = p.id
		WHERE p.owner_id = $1
		GROUP BY p.id
		ORDER BY p.name_key, p.id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*WithVisits
	for rows.Next() {
		var visits []time.Time
		p, err := scanPatient(rows, &visits)
		if err != nil {
			return nil, err
		}
		items = append(items, &WithVisits{Patient: *p, VisitTimes: visits})
	}
	return items, rows.Err()
}
