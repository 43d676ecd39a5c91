// Package advisory holds the one-shot text generators that ride alongside
// the pipeline: each makes a single model call and always returns usable
// text, substituting a local fallback on any failure. Nothing here touches
// consultation state.
package advisory

import (
	"context"
	"log"
	"strings"

	"clinical-scribe/internal/consultation"
	"clinical-scribe/internal/llm"
)

type Scheduling struct {
	llm llm.Client
}

func NewScheduling(client llm.Client) *Scheduling {
	return &Scheduling{llm: client}
}

// SuggestNextAppointment recommends follow-up timing from the finished note.
func (s *Scheduling) SuggestNextAppointment(ctx context.Context, c *consultation.Consultation, note *consultation.GeneratedNote) string {
	log.Printf("Generating appointment recommendation for consultation %s", c.ID)

	var b strings.Builder
	b.WriteString("You are a clinical scheduling assistant. Based on the consultation, recommend the next follow-up appointment.\n\n")
	b.WriteString("ASSESSMENT:\n" + note.SoapAssessment + "\n\n")
	b.WriteString("PLAN:\n" + note.SoapPlan + "\n\n")
	b.WriteString("TASK: Recommend next appointment timing and provide brief rationale.\n\n")
	b.WriteString("Consider:\n")
	b.WriteString("- Condition severity and stability\n")
	b.WriteString("- Medication changes requiring monitoring\n")
	b.WriteString("- Lab results pending review\n")
	b.WriteString("- Chronic disease management intervals\n")
	b.WriteString("- Urgent vs routine follow-up needs\n\n")
	b.WriteString("Return in this format:\n")
	b.WriteString("TIMEFRAME: [1 week | 2 weeks | 1 month | 3 months | 6 months | As needed]\n")
	b.WriteString("REASON: [Brief clinical rationale]\n")
	b.WriteString("PRIORITY: [Urgent | Routine | Optional]\n")

	resp, err := s.llm.RunPrompt(ctx, b.String(), llm.Options{Temperature: 0.3, MaxTokens: 300})
	if err != nil {
		log.Printf("Failed to generate appointment recommendation: %v", err)
		return defaultRecommendation
	}
	return resp.Content
}

const defaultRecommendation = "TIMEFRAME: 2 weeks\nREASON: Standard follow-up to assess treatment response\nPRIORITY: Routine"
