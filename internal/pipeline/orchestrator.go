package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"clinical-scribe/internal/consultation"
	"clinical-scribe/internal/patient"
)

// ConsultationStore is the slice of the consultation repository the
// orchestrator needs. BeginProcessing must be a compare-and-set on state so a
// second run for the same id loses at the storage layer as well as at the
// single-flight guard.
type ConsultationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error)
	BeginProcessing(ctx context.Context, id uuid.UUID) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	CompleteWithNote(ctx context.Context, id uuid.UUID, note *consultation.GeneratedNote) error
}

type PatientStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Notifier is told, best-effort, when a run reaches a terminal state.
type Notifier interface {
	RunFinished(ctx context.Context, c *consultation.Consultation)
}

// Run is the handle for one dispatched pipeline execution. The caller may
// discard it; tests wait on Done instead of sleeping.
type Run struct {
	ConsultationID uuid.UUID

	done chan struct{}
	err  error
}

// Done is closed when the run has reached a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err reports the run's failure, valid once Done is closed.
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the run finishes or ctx expires.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Orchestrator drives the four pipeline stages for one consultation at a
// time per id, with a bounded number of concurrent runs across ids.
type Orchestrator struct {
	stages        *Stages
	consultations ConsultationStore
	patients      PatientStore
	notifier      Notifier

	workers    *semaphore.Weighted
	inflight   singleflight.Group
	runTimeout time.Duration
}

// Config bounds the orchestrator's resource use.
type Config struct {
	// MaxConcurrentRuns caps outbound model pressure across consultations.
	MaxConcurrentRuns int64
	// RunTimeout bounds one end-to-end run, all four model calls included.
	RunTimeout time.Duration
}

func NewOrchestrator(stages *Stages, consultations ConsultationStore, patients PatientStore, cfg Config) *Orchestrator {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 4
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		stages:        stages,
		consultations: consultations,
		patients:      patients,
		workers:       semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		runTimeout:    cfg.RunTimeout,
	}
}

// SetNotifier attaches an optional completion notifier.
func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }

// Process dispatches one pipeline run for the given consultation. A missing
// consultation is reported synchronously; every later failure lands on the
// consultation row as an ERROR transition, never on the caller. Concurrent
// calls for the same id collapse onto a single run.
func (o *Orchestrator) Process(ctx context.Context, id uuid.UUID) (*Run, error) {
	if _, err := o.consultations.GetByID(ctx, id); err != nil {
		return nil, err
	}

	run := &Run{ConsultationID: id, done: make(chan struct{})}
	go func() {
		defer close(run.done)
		_, err, _ := o.inflight.Do(id.String(), func() (interface{}, error) {
			runCtx, cancel := context.WithTimeout(context.Background(), o.runTimeout)
			defer cancel()

			if err := o.workers.Acquire(runCtx, 1); err != nil {
				return nil, o.fail(id, fmt.Errorf("worker pool saturated: %w", err))
			}
			defer o.workers.Release(1)

			return nil, o.execute(runCtx, id)
		})
		run.err = err
	}()
	return run, nil
}

// Enqueue is the fire-and-forget shape of Process, for callers that only
// observe completion through the consultation's state.
func (o *Orchestrator) Enqueue(ctx context.Context, id uuid.UUID) error {
	_, err := o.Process(ctx, id)
	return err
}

func (o *Orchestrator) execute(ctx context.Context, id uuid.UUID) error {
	log.Printf("Starting processing of consultation %s", id)

	// CAS into PROCESSING. Losing here means another run already owns the id
	// or the consultation is past QUEUED; nothing to roll back.
	if err := o.consultations.BeginProcessing(ctx, id); err != nil {
		return fmt.Errorf("consultation %s not runnable: %w", id, err)
	}

	c, err := o.consultations.GetByID(ctx, id)
	if err != nil {
		return o.fail(id, err)
	}
	p, err := o.patients.GetByID(ctx, c.PatientID)
	if err != nil {
		return o.fail(id, fmt.Errorf("patient %s: %w", c.PatientID, err))
	}

	facts, err := o.stages.Perception(ctx, c.RawTranscript, p)
	if err != nil {
		return o.fail(id, err)
	}

	note, err := o.stages.Documentation(ctx, facts.RawJSON, c.RawTranscript)
	if err != nil {
		return o.fail(id, err)
	}

	soapJSON, err := json.Marshal(map[string]string{
		"subjective": note.SoapSubjective,
		"objective":  note.SoapObjective,
		"assessment": note.SoapAssessment,
		"plan":       note.SoapPlan,
	})
	if err != nil {
		return o.fail(id, err)
	}

	actions, err := o.stages.Coordination(ctx, facts.RawJSON, string(soapJSON))
	if err != nil {
		return o.fail(id, err)
	}
	note.SuggestedActions = actions

	// Validation gate. A failed verdict is recorded for audit but does not
	// block the note; only a broken stage aborts.
	verdict, err := o.stages.Compliance(ctx, string(soapJSON), note.ICD10Codes, p.Allergies)
	if err != nil {
		return o.fail(id, err)
	}
	if !verdict.CompliancePassed {
		log.Printf("Compliance check FAILED for consultation %s: conflicts=%v interactions=%v missing=%v",
			id, verdict.AllergyConflicts, verdict.DrugInteractions, verdict.MissingElements)
	} else {
		log.Printf("Compliance check passed for consultation %s (completeness %.2f)", id, verdict.CompletenessScore)
	}

	note.ID = uuid.New()
	note.ConsultationID = id
	note.CreatedBy = c.ClinicianID
	note.CreatedAt = time.Now()

	if err := o.consultations.CompleteWithNote(ctx, id, note); err != nil {
		return o.fail(id, fmt.Errorf("failed to persist note: %w", err))
	}

	log.Printf("Consultation %s processed successfully", id)
	o.notify(id)
	return nil
}

// fail converts any run failure into an ERROR transition with a diagnostic
// message. Marking is best-effort: if even that write fails the consultation
// may be stuck, so both errors are reported together.
func (o *Orchestrator) fail(id uuid.UUID, cause error) error {
	log.Printf("Error processing consultation %s: %v", id, cause)

	markCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.consultations.MarkError(markCtx, id, cause.Error()); err != nil {
		log.Printf("Failed to mark consultation %s as errored: %v", id, err)
		return multierror.Append(cause, fmt.Errorf("additionally failed to record error state: %w", err))
	}
	o.notify(id)
	return cause
}

func (o *Orchestrator) notify(id uuid.UUID) {
	if o.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := o.consultations.GetByID(ctx, id)
	if err != nil {
		return
	}
	o.notifier.RunFinished(ctx, c)
}

// IsNotFound reports whether err is either store's not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, consultation.ErrNotFound) || errors.Is(err, patient.ErrNotFound)
}
