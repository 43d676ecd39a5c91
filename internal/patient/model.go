package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the demographic record the pipeline draws context from.
type Patient struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	FirstName           string     `json:"first_name" db:"first_name"`
	LastName            string     `json:"last_name" db:"last_name"`
	DOB                 *time.Time `json:"dob,omitempty" db:"dob"`
	MedicalRecordNumber string     `json:"medical_record_number,omitempty" db:"medical_record_number"`
	Allergies           []string   `json:"allergies" db:"allergies"`
	ChronicConditions   []string   `json:"chronic_conditions" db:"chronic_conditions"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// FullName joins first and last name for prompts and display.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age in whole years at the given time, zero when DOB is unknown.
func (p *Patient) Age(now time.Time) int {
	if p.DOB == nil {
		return 0
	}
	years := now.Year() - p.DOB.Year()
	if now.YearDay() < p.DOB.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
