package patient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no patient exists under the requested id.
var ErrNotFound = errors.New("patient not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Save(ctx context.Context, p *Patient) error
	List(ctx context.Context) ([]Patient, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	query := `SELECT id, first_name, last_name, dob, medical_record_number, allergies, chronic_conditions, created_at
		FROM patients WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	var p Patient
	var dob sql.NullTime
	var mrn sql.NullString
	var allergiesJSON, conditionsJSON []byte

	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &dob, &mrn, &allergiesJSON, &conditionsJSON, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if dob.Valid {
		p.DOB = &dob.Time
	}
	p.MedicalRecordNumber = mrn.String

	if len(allergiesJSON) > 0 {
		if err := json.Unmarshal(allergiesJSON, &p.Allergies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allergies: %w", err)
		}
	}
	if len(conditionsJSON) > 0 {
		if err := json.Unmarshal(conditionsJSON, &p.ChronicConditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chronic conditions: %w", err)
		}
	}

	return &p, nil
}

func (r *postgresRepo) Save(ctx context.Context, p *Patient) error {
	allergiesJSON, err := json.Marshal(p.Allergies)
	if err != nil {
		return err
	}
	conditionsJSON, err := json.Marshal(p.ChronicConditions)
	if err != nil {
		return err
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO patients (id, first_name, last_name, dob, medical_record_number, allergies, chronic_conditions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			first_name = $2,
			last_name = $3,
			dob = $4,
			medical_record_number = $5,
			allergies = $6,
			chronic_conditions = $7
	`
	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.FirstName, p.LastName, p.DOB, nullString(p.MedicalRecordNumber), allergiesJSON, conditionsJSON, p.CreatedAt)
	return err
}

func (r *postgresRepo) List(ctx context.Context) ([]Patient, error) {
	query := `SELECT id, first_name, last_name, dob, medical_record_number, allergies, chronic_conditions, created_at
		FROM patients ORDER BY last_name, first_name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		var p Patient
		var dob sql.NullTime
		var mrn sql.NullString
		var allergiesJSON, conditionsJSON []byte

		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &dob, &mrn, &allergiesJSON, &conditionsJSON, &p.CreatedAt); err != nil {
			return nil, err
		}
		if dob.Valid {
			p.DOB = &dob.Time
		}
		p.MedicalRecordNumber = mrn.String
		if len(allergiesJSON) > 0 {
			if err := json.Unmarshal(allergiesJSON, &p.Allergies); err != nil {
				return nil, err
			}
		}
		if len(conditionsJSON) > 0 {
			if err := json.Unmarshal(conditionsJSON, &p.ChronicConditions); err != nil {
				return nil, err
			}
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
