package consultation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"clinical-scribe/internal/patient"
)

// Processor triggers a pipeline run for a consultation. The orchestrator
// satisfies this; the interface lives here so intake never depends on the
// pipeline package.
type Processor interface {
	Enqueue(ctx context.Context, id uuid.UUID) error
}

// PatientFinder is the slice of the patient repository intake needs.
type PatientFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// SubmitRequest is one transcript upload.
type SubmitRequest struct {
	PatientID   uuid.UUID
	ClinicianID uuid.UUID
	Transcript  string
	VitalSigns  *VitalSigns
}

// Status is the poll-based view callers observe completion through.
type Status struct {
	ID           uuid.UUID `json:"id"`
	State        State     `json:"state"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Detail is a consultation together with its note, when one exists.
type Detail struct {
	Consultation
	GeneratedNote *GeneratedNote `json:"generated_note,omitempty"`
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*Consultation, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*Status, error)
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	History(ctx context.Context, patientID uuid.UUID) ([]Detail, error)
	Approve(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo      Repository
	patients  PatientFinder
	processor Processor
}

func NewService(repo Repository, patients PatientFinder, processor Processor) Service {
	return &service{repo: repo, patients: patients, processor: processor}
}

// Submit validates the request, creates the consultation in QUEUED and kicks
// off processing. Completion is observable only through GetStatus.
func (s *service) Submit(ctx context.Context, req SubmitRequest) (*Consultation, error) {
	var invalid *multierror.Error
	if req.PatientID == uuid.Nil {
		invalid = multierror.Append(invalid, fmt.Errorf("patient_id is required"))
	}
	if req.ClinicianID == uuid.Nil {
		invalid = multierror.Append(invalid, fmt.Errorf("clinician_id is required"))
	}
	if strings.TrimSpace(req.Transcript) == "" {
		invalid = multierror.Append(invalid, fmt.Errorf("transcript must not be empty"))
	}
	if err := invalid.ErrorOrNil(); err != nil {
		return nil, err
	}

	if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	c := &Consultation{
		ID:            uuid.New(),
		PatientID:     req.PatientID,
		ClinicianID:   req.ClinicianID,
		State:         StateQueued,
		RawTranscript: req.Transcript,
		VitalSigns:    req.VitalSigns,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	if err := s.processor.Enqueue(ctx, c.ID); err != nil {
		// The row exists and stays QUEUED; surface the dispatch failure.
		return nil, fmt.Errorf("failed to dispatch processing: %w", err)
	}
	return c, nil
}

func (s *service) GetStatus(ctx context.Context, id uuid.UUID) (*Status, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Status{ID: c.ID, State: c.State, ErrorMessage: c.ErrorMessage}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withNote(ctx, c)
}

func (s *service) History(ctx context.Context, patientID uuid.UUID) ([]Detail, error) {
	consultations, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	details := make([]Detail, 0, len(consultations))
	for i := range consultations {
		d, err := s.withNote(ctx, &consultations[i])
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, nil
}

func (s *service) withNote(ctx context.Context, c *Consultation) (*Detail, error) {
	d := &Detail{Consultation: *c}
	if c.GeneratedNoteID != nil {
		note, err := s.repo.GetNote(ctx, *c.GeneratedNoteID)
		if err != nil && err != ErrNoteNotFound {
			return nil, err
		}
		d.GeneratedNote = note
	}
	return d, nil
}

// Approve moves READY -> APPROVED and then attempts the EHR sync, which on
// success lands the terminal SYNCED state.
func (s *service) Approve(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateState(ctx, id, StateApproved); err != nil {
		return err
	}
	log.Printf("Consultation %s approved", id)

	if s.syncToEHR(ctx, id) {
		if err := s.repo.UpdateState(ctx, id, StateSynced); err != nil {
			return err
		}
	}
	return nil
}

// syncToEHR stands in for the FHIR export; the real integration lives outside
// this service.
func (s *service) syncToEHR(ctx context.Context, id uuid.UUID) bool {
	log.Printf("Simulating FHIR sync for consultation %s", id)
	return true
}
