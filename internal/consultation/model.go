package consultation

import (
	"time"

	"github.com/google/uuid"
)

// VitalSigns is an optional snapshot taken at intake.
type VitalSigns struct {
	BloodPressure    string  `json:"blood_pressure,omitempty"`
	HeartRate        int     `json:"heart_rate,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	OxygenSaturation int     `json:"oxygen_saturation,omitempty"`
	RespiratoryRate  int     `json:"respiratory_rate,omitempty"`
	Weight           float64 `json:"weight,omitempty"`
	Height           float64 `json:"height,omitempty"`
}

// Consultation is the aggregate root: one clinical encounter working its way
// through the processing pipeline.
type Consultation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PatientID   uuid.UUID `json:"patient_id" db:"patient_id"`
	ClinicianID uuid.UUID `json:"clinician_id" db:"clinician_id"`

	State State `json:"state" db:"state"`

	RawTranscript string      `json:"raw_transcript" db:"raw_transcript"`
	VitalSigns    *VitalSigns `json:"vital_signs,omitempty" db:"vital_signs"`

	// Set only when State == StateError.
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	// Set only once the pipeline has produced and persisted a note.
	GeneratedNoteID *uuid.UUID `json:"generated_note_id,omitempty" db:"generated_note_id"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// ICD10Suggestion is one model-suggested diagnosis code.
type ICD10Suggestion struct {
	Code       string  `json:"code"`
	Desc       string  `json:"desc"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// GeneratedNote is the structured output of one successful pipeline run.
// Notes are write-once: a rerun creates a new note, never mutates an old one.
type GeneratedNote struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConsultationID uuid.UUID `json:"consultation_id" db:"consultation_id"`

	SoapSubjective string `json:"soap_subjective" db:"soap_subjective"`
	SoapObjective  string `json:"soap_objective" db:"soap_objective"`
	SoapAssessment string `json:"soap_assessment" db:"soap_assessment"`
	SoapPlan       string `json:"soap_plan" db:"soap_plan"`

	// Serialized JSON payloads straight out of the model, stored verbatim.
	ICD10Codes       string `json:"icd10_codes" db:"icd10_codes"`
	SuggestedActions string `json:"suggested_actions" db:"suggested_actions"`

	PatientSummary string  `json:"patient_summary" db:"patient_summary"`
	Confidence     float64 `json:"confidence" db:"confidence"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"`
}
