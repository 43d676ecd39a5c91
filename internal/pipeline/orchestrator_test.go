package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"clinical-scribe/internal/consultation"
	"clinical-scribe/internal/llm"
	"clinical-scribe/internal/patient"
	"clinical-scribe/internal/prompt"
)

// memConsultations is an in-memory ConsultationStore with the same CAS
// semantics as the Postgres repository.
type memConsultations struct {
	mu            sync.Mutex
	consultations map[uuid.UUID]*consultation.Consultation
	notes         map[uuid.UUID]*consultation.GeneratedNote

	failComplete error
	failMark     error
}

func newMemConsultations() *memConsultations {
	return &memConsultations{
		consultations: make(map[uuid.UUID]*consultation.Consultation),
		notes:         make(map[uuid.UUID]*consultation.GeneratedNote),
	}
}

func (m *memConsultations) put(c *consultation.Consultation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.consultations[c.ID] = &cp
}

func (m *memConsultations) GetByID(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return nil, consultation.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConsultations) BeginProcessing(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return consultation.ErrNotFound
	}
	if c.State != consultation.StateQueued {
		return consultation.ErrNotRunnable
	}
	c.State = consultation.StateProcessing
	return nil
}

func (m *memConsultations) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	if m.failMark != nil {
		return m.failMark
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return consultation.ErrNotFound
	}
	c.State = consultation.StateError
	c.ErrorMessage = message
	now := time.Now()
	c.CompletedAt = &now
	return nil
}

func (m *memConsultations) CompleteWithNote(ctx context.Context, id uuid.UUID, note *consultation.GeneratedNote) error {
	if m.failComplete != nil {
		return m.failComplete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return consultation.ErrNotFound
	}
	if c.State != consultation.StateProcessing {
		return consultation.ErrNotRunnable
	}
	cp := *note
	m.notes[note.ID] = &cp
	c.State = consultation.StateReady
	c.GeneratedNoteID = &cp.ID
	now := time.Now()
	c.CompletedAt = &now
	return nil
}

func (m *memConsultations) noteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

type memPatients struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*patient.Patient
}

func newMemPatients() *memPatients {
	return &memPatients{patients: make(map[uuid.UUID]*patient.Patient)}
}

func (m *memPatients) put(p *patient.Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *memPatients) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

// failOnClient delegates to the mock backend except for prompts containing
// the trigger, which fail with the configured error.
type failOnClient struct {
	inner   llm.Client
	trigger string
	err     error
}

func (c *failOnClient) RunPrompt(ctx context.Context, p string, opts llm.Options) (*llm.Response, error) {
	if strings.Contains(p, c.trigger) {
		return nil, c.err
	}
	return c.inner.RunPrompt(ctx, p, opts)
}

func newTestEngine() *prompt.Engine {
	return prompt.NewEngine(prompt.NewEmbeddedStore())
}

func seed(t *testing.T, consultations *memConsultations, patients *memPatients, transcript string) uuid.UUID {
	t.Helper()
	p := &patient.Patient{
		ID:        uuid.New(),
		FirstName: "Thandi",
		LastName:  "Nkosi",
		Allergies: []string{"penicillin"},
	}
	patients.put(p)

	c := &consultation.Consultation{
		ID:            uuid.New(),
		PatientID:     p.ID,
		ClinicianID:   uuid.New(),
		State:         consultation.StateQueued,
		RawTranscript: transcript,
		CreatedAt:     time.Now(),
	}
	consultations.put(c)
	return c.ID
}

func waitRun(t *testing.T, run *Run) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return run.Wait(ctx)
}

func TestProcessFeverTranscriptEndsReady(t *testing.T) {
	consultations := newMemConsultations()
	patients := newMemPatients()
	id := seed(t, consultations, patients, "Patient reports fever for the last two days, feeling tired.")

	o := NewOrchestrator(NewStages(llm.NewMockClient(), newTestEngine()), consultations, patients, Config{})

	run, err := o.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := waitRun(t, run); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	c, err := consultations.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if c.State != consultation.StateReady {
		t.Fatalf("expected READY, got %s (error: %s)", c.State, c.ErrorMessage)
	}
	if c.GeneratedNoteID == nil {
		t.Fatal("READY consultation must reference a note")
	}

	note := consultations.notes[*c.GeneratedNoteID]
	if note == nil {
		t.Fatal("referenced note not persisted")
	}
	if note.SoapAssessment == "" {
		t.Fatal("assessment should not be empty")
	}
	if !strings.Contains(note.SoapPlan, "Acetaminophen") {
		t.Fatalf("fever plan should reference antipyretic care, got %q", note.SoapPlan)
	}
	if note.SuggestedActions == "" || !strings.Contains(note.SuggestedActions, "actions") {
		t.Fatalf("coordination actions missing: %q", note.SuggestedActions)
	}
	if note.ICD10Codes == "" || !strings.Contains(note.ICD10Codes, "R50.9") {
		t.Fatalf("expected fever ICD-10 suggestion, got %q", note.ICD10Codes)
	}
}

func TestProcessUnknownConsultationSurfacesNotFound(t *testing.T) {
	consultations := newMemConsultations()
	patients := newMemPatients()
	o := NewOrchestrator(NewStages(llm.NewMockClient(), newTestEngine()), consultations, patients, Config{})

	_, err := o.Process(context.Background(), uuid.New())
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestCoordinationFailureDiscardsEverything(t *testing.T) {
	consultations := newMemConsultations()
	patients := newMemPatients()
	id := seed(t, consultations, patients, "Patient reports fever for the last two days.")

	client := &failOnClient{
		inner:   llm.NewMockClient(),
		trigger: "care coordination",
		err:     &llm.StatusError{Code: 502, Body: "bad gateway"},
	}
	o := NewOrchestrator(NewStages(client, newTestEngine()), consultations, patients, Config{})

	run, err := o.Process(context.Background(), id)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := waitRun(t, run); err == nil {
		t.Fatal("expected run failure")
	}

	c, _ := consultations.GetByID(context.Background(), id)
	if c.State != consultation.StateError {
		t.Fatalf("expected ERROR, got %s", c.State)
	}
	if c.ErrorMessage == "" {
		t.Fatal("ERROR state requires a diagnostic message")
	}
	if c.GeneratedNoteID != nil {
		t.Fatal("no note may be attached on failure")
	}
	if consultations.noteCount() != 0 {
		t.Fatalf("documentation output must be discarded, found %d note(s)", consultations.noteCount())
	}
}

func TestPerceptionBackendFailureEndsError(t *testing.T) {
	consultations := newMemConsultations()
	patients := newMemPatients()
	id := seed(t, consultations, patients, "Patient has a headache.")

	client := &failOnClient{
		inner:   llm.NewMockClient(),
		trigger: "clinical information extractor",
		err:     llm.ErrUnavailable,
	}
	o := NewOrchestrator(NewStages(client, newTestEngine()), consultations, patients, Config{})

	run, _ := o.Process(context.Background(), id)
	if err := waitRun(t, run); err == nil {
		t.Fatal("expected run failure")
	}

	c, _ := consultations.GetByID(context.Background(), id)
	if c.State != consultation.StateError {
		t.Fatalf("expected ERROR, got %s", c.State)
	}
}

func TestPersistenceFailureStillLeavesErrorState(t *testing.T) {
	consultations := newMemConsultations()
	patients := newMemPatients()
	id := seed(t, consultations, patients, "Patient reports fever.")
	consultations.failComplete = fmt.Errorf("disk full")

	o := NewOrchestrator(NewStages(llm.NewMockClient(), newTestEngine()), consultations, patients, Config{})

	run, _ := o.Process(context.Background(), id)
	if err := waitRun(t, run); err == nil {
		t.Fatal("expected run failure")
	}

	c, _ := consultations.GetByID(context.Background(), id)
	if c.State != consultation.StateError {
		t.Fatalf("consultation must not remain PROCESSING, got %s", c.State)
	}
	if !strings.Contains(c.ErrorMessage, "disk full") {
		t.Fatalf("diagnostic should carry the cause, got %q", c.ErrorMessage)
	}
}

func TestConcurrentRunsForSameIDProduceOneNote(t *testing.T) {
	consultations := newMemConsultations()
	patients := newMemPatients()
	id := seed(t, consultations, patients, "Patient reports fever.")

	o := NewOrchestrator(NewStages(llm.NewMockClient(), newTestEngine()), consultations, patients, Config{})

	const callers = 8
	runs := make([]*Run, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run, err := o.Process(context.Background(), id)
			if err != nil {
				t.Errorf("dispatch %d: %v", i, err)
				return
			}
			runs[i] = run
		}(i)
	}
	wg.Wait()

	for _, run := range runs {
		if run != nil {
			waitRun(t, run)
		}
	}

	if consultations.noteCount() != 1 {
		t.Fatalf("expected exactly one note, got %d", consultations.noteCount())
	}
	c, _ := consultations.GetByID(context.Background(), id)
	if c.State != consultation.StateReady {
		t.Fatalf("expected READY, got %s", c.State)
	}
}

func TestRerunAfterCompletionIsRejected(t *testing.T) {
	consultations := newMemConsultations()
	patients := newMemPatients()
	id := seed(t, consultations, patients, "Patient reports fever.")

	o := NewOrchestrator(NewStages(llm.NewMockClient(), newTestEngine()), consultations, patients, Config{})

	run, _ := o.Process(context.Background(), id)
	if err := waitRun(t, run); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, _ := o.Process(context.Background(), id)
	err := waitRun(t, second)
	if !errors.Is(err, consultation.ErrNotRunnable) {
		t.Fatalf("second run should lose the state CAS, got %v", err)
	}
	if consultations.noteCount() != 1 {
		t.Fatalf("rerun must not create a second note, got %d", consultations.noteCount())
	}
	c, _ := consultations.GetByID(context.Background(), id)
	if c.State != consultation.StateReady {
		t.Fatalf("completed consultation must keep its state, got %s", c.State)
	}
}

func TestRunTimeoutEndsError(t *testing.T) {
	consultations := newMemConsultations()
	patients := newMemPatients()
	id := seed(t, consultations, patients, "Patient reports fever.")

	slow := llm.NewMockClient()
	slow.Latency = 200 * time.Millisecond
	o := NewOrchestrator(NewStages(slow, newTestEngine()), consultations, patients, Config{
		RunTimeout: 50 * time.Millisecond,
	})

	run, _ := o.Process(context.Background(), id)
	if err := waitRun(t, run); err == nil {
		t.Fatal("expected timeout failure")
	}

	c, _ := consultations.GetByID(context.Background(), id)
	if c.State != consultation.StateError {
		t.Fatalf("timed-out run must land in ERROR, got %s", c.State)
	}
}
