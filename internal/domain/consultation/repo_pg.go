package consultation

import (
	"context"

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

type consultationRepoPG struct{ pool *pgxpool.Pool }

func NewConsultationRepoPG(pool *pgxpool.Pool) ConsultationRepository {
	return &consultationRepoPG{pool: pool}
}

func (r *consultationRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const consultationCols = `id, owner_id, patient_id, created_at, summary, payload, status, provenance`

func (r *consultationRepoPG) Insert(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	if c.Status == "" {
		c.Status = StatusCompleted
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultation (`+consultationCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.OwnerID, c.PatientID, c.CreatedAt, c.Summary, c.Payload,
		string(c.Status), string(c.Provenance))
	return err
}

func (r *consultationRepoPG) ListByPatient(ctx context.Context, ownerID string, patientID uuid.UUID) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+consultationCols+` FROM consultation
		WHERE owner_id = $1 AND patient_id = $2 ORDER BY created_at`, ownerID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Consultation
	for rows.Next() {
		var c Consultation
		var status, provenance string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.PatientID, &c.CreatedAt, &c.Summary, &c.Payload,
			&status, &provenance); err != nil {
			return nil, err
		}
		c.Status = Status(status)
		c.Provenance = Provenance(provenance)
		items = append(items, &c)
	}
	return items, rows.Err()
}
