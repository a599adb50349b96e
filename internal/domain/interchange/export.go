package interchange

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/clinic/interchange/internal/domain/patient"
)

// NoHistory fills the last-visit column of a patient without consultations.
const NoHistory = "Sin historial"

// ExportHeaders is the fixed column order of a backup.
var ExportHeaders = []string{
	"ID Sistema",
	"Nombre Completo",
	"Teléfono",
	"Correo",
	"Género",
	"Fecha Nacimiento",
	"Fecha Registro",
	"Última Consulta",
}

// ExportRecord is one flattened patient.
type ExportRecord struct {
	ID           string `parquet:"id_sistema"`
	Name         string `parquet:"nombre_completo"`
	Phone        string `parquet:"telefono"`
	Email        string `parquet:"correo"`
	Gender       string `parquet:"genero"`
	BirthDate    string `parquet:"fecha_nacimiento"`
	RegisteredAt string `parquet:"fecha_registro"`
	LastVisit    string `parquet:"ultima_consulta"`
}

// Values returns the record in ExportHeaders order.
func (r ExportRecord) Values() []string {
	return []string{r.ID, r.Name, r.Phone, r.Email, r.Gender, r.BirthDate, r.RegisteredAt, r.LastVisit}
}

// Flatten aggregates the last visit of each patient and orders the records
// by name key, then id.
func Flatten(items []*patient.WithVisits) []ExportRecord {
	sorted := make([]*patient.WithVisits, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := patient.NameKey(sorted[i].Name), patient.NameKey(sorted[j].Name)
		if ki != kj {
			return ki < kj
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	out := make([]ExportRecord, 0, len(sorted))
	for _, p := range sorted {
		rec := ExportRecord{
			ID:           p.ID.String(),
			Name:         p.Name,
			Phone:        deref(p.Phone),
			Email:        deref(p.Email),
			Gender:       string(p.Gender),
			RegisteredAt: p.CreatedAt.UTC().Format(time.RFC3339),
			LastVisit:    NoHistory,
		}
		if p.BirthDate != nil {
			rec.BirthDate = p.BirthDate.Format(time.DateOnly)
		}
		if last, ok := p.LastVisit(); ok {
			rec.LastVisit = last.UTC().Format(time.RFC3339)
		}
		out = append(out, rec)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

const utf8BOM = "\uFEFF"

// WriteCSV writes a BOM, the header row and every record, with each field
// wrapped in double quotes.
func WriteCSV(w io.Writer, records []ExportRecord) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(utf8BOM)
	writeQuotedLine(bw, ExportHeaders)
	for _, r := range records {
		writeQuotedLine(bw, r.Values())
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func writeQuotedLine(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// Artifact is a serialized backup held in memory.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// Exporter serializes an owner's whole patient set.
type Exporter struct {
	source ExportSource
	now    func() time.Time
}

func NewExporter(source ExportSource) *Exporter {
	return &Exporter{source: source, now: time.Now}
}

// Export reads every patient of ownerID and renders it in format. The full
// set is materialized; there is no paging.
func (e *Exporter) Export(ctx context.Context, ownerID string, format Format) (*Artifact, error) {
	if ownerID == "" {
		return nil, &AuthError{}
	}
	items, err := e.source.ListWithVisits(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	records := Flatten(items)

	var buf bytes.Buffer
	if err := format.write(&buf, records); err != nil {
		return nil, err
	}
	return &Artifact{
		Filename:    format.Filename(e.now()),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
		Rows:        len(records),
	}, nil
}
