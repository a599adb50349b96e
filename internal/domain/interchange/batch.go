package interchange

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/interchange/internal/platform/db"
	"github.com/clinic/interchange/internal/platform/tabular"
)

// BatchResult summarizes one import. It is returned to the caller and never
// persisted.
type BatchResult struct {
	RowsProcessed        int        `json:"rows_processed"`
	PatientsCreated      int        `json:"patients_created"`
	PatientsMerged       int        `json:"patients_merged"`
	ConsultationsCreated int        `json:"consultations_created"`
	Errors               []RowError `json:"errors"`
}

// Progress is called after each row with the number of rows done and the
// total.
type Progress func(done, total int)

// Importer runs the row pipeline against a patient and a consultation
// store.
type Importer struct {
	patients      PatientStore
	consultations ConsultationStore
	classifier    *Classifier
	logger        zerolog.Logger
	now           func() time.Time
}

type Option func(*Importer)

func WithClassifier(c *Classifier) Option {
	return func(im *Importer) { im.classifier = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithClock replaces time.Now for age arithmetic and unobserved visit
// dates.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

func NewImporter(patients PatientStore, consultations ConsultationStore, opts ...Option) *Importer {
	im := &Importer{
		patients:      patients,
		consultations: consultations,
		classifier:    defaultClassifier,
		logger:        zerolog.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import parses r and imports every row for ownerID. See ImportTable.
func (im *Importer) Import(ctx context.Context, ownerID string, r io.Reader, filename string, progress Progress) (*BatchResult, error) {
	if ownerID == "" {
		return nil, &AuthError{}
	}
	tbl, err := tabular.Parse(r, filename)
	if err != nil {
		return nil, &FileParseError{File: filename, Err: err}
	}
	return im.ImportTable(ctx, ownerID, tbl, filename, progress)
}

// ImportTable processes rows strictly in order so a later row always sees
// the patient an earlier row created. Row failures are recorded in the
// result and never stop the batch. Store calls ignore cancellation of ctx:
// once started, a batch runs to the end.
func (im *Importer) ImportTable(ctx context.Context, ownerID string, tbl *tabular.Table, sourceFile string, progress Progress) (*BatchResult, error) {
	if ownerID == "" {
		return nil, &AuthError{}
	}
	if tbl == nil || len(tbl.Rows) == 0 {
		return nil, &FileParseError{File: sourceFile, Err: tabular.ErrNoRows}
	}

	ctx = context.WithoutCancel(ctx)
	log := im.logger.With().
		Str("owner", ownerID).
		Str("clinic", db.ClinicFromContext(ctx)).
		Str("file", sourceFile).
		Logger()
	res := &BatchResult{Errors: []RowError{}}
	total := len(tbl.Rows)

	for i, row := range tbl.Rows {
		res.RowsProcessed++
		if err := im.importRow(ctx, ownerID, tbl.Headers, row, sourceFile, res); err != nil {
			re := rowError(err)
			res.Errors = append(res.Errors, re)
			log.Warn().Int("line", re.Line).Str("kind", string(re.Kind)).Msg(re.Reason)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	log.Info().
		Int("rows", res.RowsProcessed).
		Int("patients_created", res.PatientsCreated).
		Int("patients_merged", res.PatientsMerged).
		Int("consultations_created", res.ConsultationsCreated).
		Int("warnings", len(res.Errors)).
		Msg("import finished")
	return res, nil
}

func (im *Importer) importRow(ctx context.Context, ownerID string, headers []string, row tabular.Row, sourceFile string, res *BatchResult) error {
	now := im.now()
	v := Validate(im.classifier.Normalize(headers, row, now))
	if !v.OK() {
		return v.Err()
	}

	resolved, err := Resolve(ctx, im.patients, ownerID, v.Row)
	if err != nil {
		return err
	}
	if resolved.Created {
		res.PatientsCreated++
	} else {
		res.PatientsMerged++
	}

	c := Synthesize(ownerID, resolved.ID, v.Row, sourceFile, now)
	if c == nil {
		return nil
	}
	if err := im.consultations.Insert(ctx, c); err != nil {
		return &StoreWriteError{Line: row.Line, Op: "insert consultation", Err: err}
	}
	res.ConsultationsCreated++
	return nil
}
