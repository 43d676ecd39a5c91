package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"clinical-scribe/internal/consultation"
	"clinical-scribe/internal/llm"
	"clinical-scribe/internal/patient"
)

// Per-stage generation options. Perception and Documentation run cold for
// reproducible extraction; Coordination gets a little headroom for proposing
// actions.
var (
	perceptionOpts    = llm.Options{Temperature: 0.2, MaxTokens: 1024}
	documentationOpts = llm.Options{Temperature: 0.1, MaxTokens: 2048}
	coordinationOpts  = llm.Options{Temperature: 0.3, MaxTokens: 1024}
	complianceOpts    = llm.Options{Temperature: 0.1, MaxTokens: 1024}
)

// MalformedResponseError marks model output that could not be parsed as the
// structured document a stage expects.
type MalformedResponseError struct {
	Stage string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s stage returned malformed response: %v", e.Stage, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// PerceptionResult is the structured-facts document the Perception stage
// extracts from a transcript. RawJSON carries the exact payload forward into
// later prompts.
type PerceptionResult struct {
	ChiefComplaint        string   `json:"chief_complaint"`
	Duration              string   `json:"duration"`
	PossibleDifferentials []string `json:"possible_differentials"`
	RedFlags              []string `json:"red_flags"`
	MissingQuestions      []string `json:"missing_questions"`

	RawJSON string `json:"-"`
}

// ComplianceVerdict is the Compliance stage's audit of the finished note.
type ComplianceVerdict struct {
	AllergyConflicts  []string `json:"allergy_conflicts"`
	DrugInteractions  []string `json:"drug_interactions"`
	CompletenessScore float64  `json:"completeness_score"`
	MissingElements   []string `json:"missing_elements"`
	CompliancePassed  bool     `json:"compliance_passed"`
}

// Stages composes the prompt engine, the model client and the response
// extractor into the four pipeline stages. Each stage is a pure function of
// its templated inputs.
type Stages struct {
	llm     llm.Client
	prompts templateRenderer
}

type templateRenderer interface {
	Render(name string, vars map[string]string) (string, error)
}

func NewStages(client llm.Client, prompts templateRenderer) *Stages {
	return &Stages{llm: client, prompts: prompts}
}

// Perception extracts structured clinical facts from the raw transcript.
// Any extraction or parse failure is fatal to the run.
func (s *Stages) Perception(ctx context.Context, transcript string, p *patient.Patient) (*PerceptionResult, error) {
	prompt, err := s.prompts.Render("perception", map[string]string{
		"TRANSCRIPT":         transcript,
		"PATIENT_NAME":       p.FullName(),
		"AGE":                fmt.Sprintf("%d", p.Age(time.Now())),
		"GENDER":             "Unknown",
		"ALLERGIES":          joinOrNone(p.Allergies),
		"CHRONIC_CONDITIONS": joinOrNone(p.ChronicConditions),
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Running perception stage for patient %s", p.ID)
	resp, err := s.llm.RunPrompt(ctx, prompt, perceptionOpts)
	if err != nil {
		return nil, fmt.Errorf("perception stage failed: %w", err)
	}

	raw := ExtractJSON(resp.Content)
	var result PerceptionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &MalformedResponseError{Stage: "perception", Err: err}
	}
	result.RawJSON = raw
	return &result, nil
}

// documentationPayload mirrors the Documentation stage's response document.
// Every sub-field is optional: a missing field defaults rather than failing
// the run, because a partial note still has clinical value.
type documentationPayload struct {
	Soap struct {
		Subjective string `json:"subjective"`
		Objective  string `json:"objective"`
		Assessment string `json:"assessment"`
		Plan       string `json:"plan"`
	} `json:"soap"`
	PatientSummary   string          `json:"patient_summary"`
	ICD10Suggestions json.RawMessage `json:"icd10_suggestions"`
	Confidence       float64         `json:"confidence"`
}

// Documentation drafts the SOAP note. Only a completely unparsable outer
// document is fatal; missing sub-fields come back empty.
func (s *Stages) Documentation(ctx context.Context, structuredJSON, transcript string) (*consultation.GeneratedNote, error) {
	prompt, err := s.prompts.Render("documentation", map[string]string{
		"STRUCTURED_JSON": structuredJSON,
		"TRANSCRIPT":      transcript,
	})
	if err != nil {
		return nil, err
	}

	log.Println("Running documentation stage")
	resp, err := s.llm.RunPrompt(ctx, prompt, documentationOpts)
	if err != nil {
		return nil, fmt.Errorf("documentation stage failed: %w", err)
	}

	raw := ExtractJSON(resp.Content)
	var payload documentationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, &MalformedResponseError{Stage: "documentation", Err: err}
	}

	note := &consultation.GeneratedNote{
		SoapSubjective: payload.Soap.Subjective,
		SoapObjective:  payload.Soap.Objective,
		SoapAssessment: payload.Soap.Assessment,
		SoapPlan:       payload.Soap.Plan,
		PatientSummary: payload.PatientSummary,
		Confidence:     payload.Confidence,
	}
	if len(payload.ICD10Suggestions) > 0 {
		note.ICD10Codes = string(payload.ICD10Suggestions)
	}
	return note, nil
}

// Coordination proposes follow-up actions from the facts and the draft note.
// The action list must parse as JSON; anything else is fatal.
func (s *Stages) Coordination(ctx context.Context, structuredJSON, soapJSON string) (string, error) {
	prompt, err := s.prompts.Render("coordination", map[string]string{
		"STRUCTURED_JSON": structuredJSON,
		"SOAP_JSON":       soapJSON,
	})
	if err != nil {
		return "", err
	}

	log.Println("Running coordination stage")
	resp, err := s.llm.RunPrompt(ctx, prompt, coordinationOpts)
	if err != nil {
		return "", fmt.Errorf("coordination stage failed: %w", err)
	}

	raw := ExtractJSON(resp.Content)
	if !json.Valid([]byte(raw)) {
		return "", &MalformedResponseError{Stage: "coordination", Err: fmt.Errorf("invalid JSON")}
	}
	return raw, nil
}

// Compliance audits the note and codes against the patient's allergies.
// A failed verdict does not abort anything; a malformed one does.
func (s *Stages) Compliance(ctx context.Context, soapJSON, icd10JSON string, allergies []string) (*ComplianceVerdict, error) {
	if soapJSON == "" {
		soapJSON = "{}"
	}
	if icd10JSON == "" {
		icd10JSON = "[]"
	}
	prompt, err := s.prompts.Render("compliance", map[string]string{
		"SOAP_JSON":         soapJSON,
		"ICD10_JSON":        icd10JSON,
		"PATIENT_ALLERGIES": joinOrNone(allergies),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Running compliance stage")
	resp, err := s.llm.RunPrompt(ctx, prompt, complianceOpts)
	if err != nil {
		return nil, fmt.Errorf("compliance stage failed: %w", err)
	}

	raw := ExtractJSON(resp.Content)
	var verdict ComplianceVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, &MalformedResponseError{Stage: "compliance", Err: err}
	}
	return &verdict, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
