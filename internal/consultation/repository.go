package consultation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no consultation exists under the id.
	ErrNotFound = errors.New("consultation not found")
	// ErrNoteNotFound is returned when a referenced note is missing.
	ErrNoteNotFound = errors.New("generated note not found")
	// ErrNotRunnable is returned when a state compare-and-set loses: the
	// consultation is not in the state the transition requires.
	ErrNotRunnable = errors.New("consultation not in a runnable state")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Create(ctx context.Context, c *Consultation) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Consultation, error)

	// BeginProcessing moves QUEUED -> PROCESSING atomically; it fails with
	// ErrNotRunnable when the row is in any other state.
	BeginProcessing(ctx context.Context, id uuid.UUID) error
	// MarkError moves the consultation to ERROR with a diagnostic message.
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	// CompleteWithNote persists the note and moves PROCESSING -> READY in one
	// transaction; both writes commit together or not at all.
	CompleteWithNote(ctx context.Context, id uuid.UUID, note *GeneratedNote) error
	// UpdateState performs the externally driven transitions (approval, sync),
	// guarded by the state machine.
	UpdateState(ctx context.Context, id uuid.UUID, to State) error

	GetNote(ctx context.Context, id uuid.UUID) (*GeneratedNote, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

const consultationColumns = `id, patient_id, clinician_id, state, raw_transcript, vital_signs, error_message, generated_note_id, created_at, completed_at`

func scanConsultation(row interface{ Scan(...any) error }) (*Consultation, error) {
	var c Consultation
	var vitalsJSON []byte
	var errMsg sql.NullString
	var noteID uuid.NullUUID
	var completedAt sql.NullTime

	err := row.Scan(&c.ID, &c.PatientID, &c.ClinicianID, &c.State, &c.RawTranscript,
		&vitalsJSON, &errMsg, &noteID, &c.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if len(vitalsJSON) > 0 {
		var v VitalSigns
		if err := json.Unmarshal(vitalsJSON, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vital signs: %w", err)
		}
		c.VitalSigns = &v
	}
	c.ErrorMessage = errMsg.String
	if noteID.Valid {
		c.GeneratedNoteID = &noteID.UUID
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`
	c, err := scanConsultation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *postgresRepo) Create(ctx context.Context, c *Consultation) error {
	var vitalsJSON []byte
	if c.VitalSigns != nil {
		var err error
		vitalsJSON, err = json.Marshal(c.VitalSigns)
		if err != nil {
			return err
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO consultations (id, patient_id, clinician_id, state, raw_transcript, vital_signs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.PatientID, c.ClinicianID, c.State, c.RawTranscript, vitalsJSON, c.CreatedAt)
	return err
}

func (r *postgresRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE patient_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// BeginProcessing relies on the WHERE clause as the concurrency guard: only
// one writer can win the QUEUED row.
func (r *postgresRepo) BeginProcessing(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE consultations SET state = $1 WHERE id = $2 AND state = $3`,
		StateProcessing, id, StateQueued)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrNotRunnable
	}
	return nil
}

func (r *postgresRepo) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE consultations SET state = $1, error_message = $2, completed_at = $3 WHERE id = $4`,
		StateError, message, time.Now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepo) CompleteWithNote(ctx context.Context, id uuid.UUID, note *GeneratedNote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO generated_notes (id, consultation_id, soap_subjective, soap_objective, soap_assessment, soap_plan,
			icd10_codes, suggested_actions, patient_summary, confidence, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, note.ID, note.ConsultationID, note.SoapSubjective, note.SoapObjective, note.SoapAssessment, note.SoapPlan,
		note.ICD10Codes, note.SuggestedActions, note.PatientSummary, note.Confidence, note.CreatedAt, note.CreatedBy)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE consultations SET state = $1, generated_note_id = $2, completed_at = $3 WHERE id = $4 AND state = $5`,
		StateReady, note.ID, time.Now(), id, StateProcessing)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotRunnable
	}

	return tx.Commit()
}

func (r *postgresRepo) UpdateState(ctx context.Context, id uuid.UUID, to State) error {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Transition(to); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE consultations SET state = $1 WHERE id = $2 AND state = $3`,
		to, id, transitionsFrom(to))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotRunnable
	}
	return nil
}

// transitionsFrom gives the unique legal predecessor of the externally driven
// states; both APPROVED and SYNCED have exactly one.
func transitionsFrom(to State) State {
	switch to {
	case StateApproved:
		return StateReady
	case StateSynced:
		return StateApproved
	default:
		return to
	}
}

func (r *postgresRepo) GetNote(ctx context.Context, id uuid.UUID) (*GeneratedNote, error) {
	query := `SELECT id, consultation_id, soap_subjective, soap_objective, soap_assessment, soap_plan,
		icd10_codes, suggested_actions, patient_summary, confidence, created_at, created_by
		FROM generated_notes WHERE id = $1`

	var n GeneratedNote
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.ConsultationID, &n.SoapSubjective, &n.SoapObjective, &n.SoapAssessment, &n.SoapPlan,
		&n.ICD10Codes, &n.SuggestedActions, &n.PatientSummary, &n.Confidence, &n.CreatedAt, &n.CreatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return &n, nil
}
