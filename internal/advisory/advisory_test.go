package advisory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"clinical-scribe/internal/consultation"
	"clinical-scribe/internal/llm"
	"clinical-scribe/internal/patient"
)

type stubClient struct {
	content string
	err     error
}

func (c *stubClient) RunPrompt(ctx context.Context, prompt string, opts llm.Options) (*llm.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Content: c.content}, nil
}

func sampleNote() *consultation.GeneratedNote {
	return &consultation.GeneratedNote{
		SoapAssessment: "Viral syndrome, likely self-limiting.",
		SoapPlan:       "Supportive care. Review in two weeks.",
	}
}

func samplePatient() *patient.Patient {
	return &patient.Patient{ID: uuid.New(), FirstName: "Lindiwe", LastName: "Mokoena"}
}

func TestSchedulingReturnsModelText(t *testing.T) {
	s := NewScheduling(&stubClient{content: "TIMEFRAME: 1 week\nREASON: x\nPRIORITY: Urgent"})
	c := &consultation.Consultation{ID: uuid.New()}

	got := s.SuggestNextAppointment(context.Background(), c, sampleNote())
	if !strings.Contains(got, "TIMEFRAME: 1 week") {
		t.Fatalf("model text not returned: %q", got)
	}
}

func TestSchedulingFallsBackOnError(t *testing.T) {
	s := NewScheduling(&stubClient{err: llm.ErrUnavailable})
	c := &consultation.Consultation{ID: uuid.New()}

	got := s.SuggestNextAppointment(context.Background(), c, sampleNote())
	if !strings.Contains(got, "TIMEFRAME: 2 weeks") {
		t.Fatalf("expected deterministic fallback, got %q", got)
	}
}

func TestEmailFallsBackWithNoteContent(t *testing.T) {
	e := NewEmail(&stubClient{err: llm.ErrTimeout})

	got := e.PatientExplanation(context.Background(), samplePatient(), sampleNote())
	if !strings.Contains(got, "Viral syndrome") || !strings.Contains(got, "Supportive care") {
		t.Fatalf("fallback email should carry assessment and plan, got %q", got)
	}
	if !strings.Contains(got, "Dear Patient") {
		t.Fatalf("fallback should be a complete email, got %q", got)
	}
}

func TestSummaryFirstVisitNeedsNoModelCall(t *testing.T) {
	s := NewSummary(&stubClient{err: llm.ErrUnavailable})

	got := s.PatientHistory(context.Background(), samplePatient(), nil)
	if !strings.Contains(got, "FIRST VISIT") {
		t.Fatalf("expected first-visit summary, got %q", got)
	}
}

func TestSummaryFallsBackOnError(t *testing.T) {
	s := NewSummary(&stubClient{err: llm.ErrUnavailable})
	history := []consultation.Consultation{{
		ID:            uuid.New(),
		RawTranscript: "fever two days",
		CreatedAt:     time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}}

	got := s.PatientHistory(context.Background(), samplePatient(), history)
	if !strings.Contains(got, "1 consultation") {
		t.Fatalf("fallback summary should count visits, got %q", got)
	}
}

func TestImagingFallsBackToObservations(t *testing.T) {
	i := NewImaging(&stubClient{err: llm.ErrUnavailable})

	got := i.DescribeFindings(context.Background(), "XR", "chest", "clear lung fields")
	if !strings.Contains(got, "clear lung fields") {
		t.Fatalf("fallback must keep the observations, got %q", got)
	}
	if !strings.Contains(got, "IMPRESSION") {
		t.Fatalf("fallback should still be a findings block, got %q", got)
	}
}
