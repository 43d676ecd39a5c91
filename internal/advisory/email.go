package advisory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"clinical-scribe/internal/consultation"
	"clinical-scribe/internal/llm"
	"clinical-scribe/internal/patient"
)

type Email struct {
	llm llm.Client
}

func NewEmail(client llm.Client) *Email {
	return &Email{llm: client}
}

// PatientExplanation writes a plain-language email body explaining the note
// to the patient.
func (e *Email) PatientExplanation(ctx context.Context, p *patient.Patient, note *consultation.GeneratedNote) string {
	log.Printf("Generating patient-friendly explanation for %s", p.FirstName)

	var b strings.Builder
	b.WriteString("You are a compassionate doctor explaining medical findings to a patient in simple, non-technical language.\n\n")
	b.WriteString("PATIENT: " + p.FullName() + "\n\n")
	b.WriteString("CLINICAL ASSESSMENT:\n" + note.SoapAssessment + "\n\n")
	b.WriteString("TREATMENT PLAN:\n" + note.SoapPlan + "\n\n")
	b.WriteString("TASK: Write a warm, clear email to the patient explaining:\n")
	b.WriteString("1. What we found (in simple terms)\n")
	b.WriteString("2. What it means for their health\n")
	b.WriteString("3. What we're doing about it\n")
	b.WriteString("4. What they need to do\n")
	b.WriteString("5. When to follow up\n\n")
	b.WriteString("GUIDELINES:\n")
	b.WriteString("- Use everyday language (avoid medical jargon)\n")
	b.WriteString("- Be reassuring but honest\n")
	b.WriteString("- Keep it conversational and warm\n")
	b.WriteString("- Include specific action items\n")
	b.WriteString("- End with encouragement\n\n")
	b.WriteString("Format as a friendly email (no subject line needed).\n")

	resp, err := e.llm.RunPrompt(ctx, b.String(), llm.Options{Temperature: 0.4, MaxTokens: 600})
	if err != nil {
		log.Printf("Failed to generate patient explanation: %v", err)
		return fallbackExplanation(note)
	}
	return resp.Content
}

func fallbackExplanation(note *consultation.GeneratedNote) string {
	return fmt.Sprintf(
		"Dear Patient,\n\n"+
			"Thank you for your visit today. Here's a summary of what we discussed:\n\n"+
			"WHAT WE FOUND:\n%s\n\n"+
			"NEXT STEPS:\n%s\n\n"+
			"Please follow the treatment plan we discussed. "+
			"If you have any questions or concerns, don't hesitate to contact us.\n\n"+
			"Take care,\nYour Healthcare Team",
		note.SoapAssessment, note.SoapPlan)
}
