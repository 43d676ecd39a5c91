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

type Summary struct {
	llm llm.Client
}

func NewSummary(client llm.Client) *Summary {
	return &Summary{llm: client}
}

// PatientHistory condenses a patient's recent consultations into a short
// pre-visit briefing for the clinician.
func (s *Summary) PatientHistory(ctx context.Context, p *patient.Patient, history []consultation.Consultation) string {
	log.Printf("Generating history summary for patient %s", p.ID)

	if len(history) == 0 {
		return firstVisitSummary(p)
	}

	resp, err := s.llm.RunPrompt(ctx, s.buildPrompt(p, history), llm.Options{Temperature: 0.3, MaxTokens: 400})
	if err != nil {
		log.Printf("Failed to generate patient summary: %v", err)
		return fallbackSummary(p, history)
	}
	return resp.Content
}

func (s *Summary) buildPrompt(p *patient.Patient, history []consultation.Consultation) string {
	var b strings.Builder
	b.WriteString("You are a clinical AI assistant. Analyze this patient's medical history and provide a concise summary for the clinician.\n\n")

	b.WriteString("PATIENT INFORMATION:\n")
	b.WriteString("Name: " + p.FullName() + "\n")
	fmt.Fprintf(&b, "Allergies: %s\n", orNone(p.Allergies))
	fmt.Fprintf(&b, "Chronic Conditions: %s\n\n", orNone(p.ChronicConditions))

	limit := len(history)
	if limit > 5 {
		limit = 5
	}
	fmt.Fprintf(&b, "RECENT CONSULTATION HISTORY (%d most recent):\n\n", limit)

	for i := 0; i < limit; i++ {
		c := history[i]
		fmt.Fprintf(&b, "Visit %d (%s):\n", i+1, c.CreatedAt.Format("Jan 02, 2006"))
		if v := c.VitalSigns; v != nil {
			b.WriteString("Vitals: ")
			if v.BloodPressure != "" {
				fmt.Fprintf(&b, "BP %s, ", v.BloodPressure)
			}
			if v.HeartRate > 0 {
				fmt.Fprintf(&b, "HR %d, ", v.HeartRate)
			}
			if v.OxygenSaturation > 0 {
				fmt.Fprintf(&b, "O2 %d%%", v.OxygenSaturation)
			}
			b.WriteString("\n")
		}
		transcript := c.RawTranscript
		if len(transcript) > 200 {
			transcript = transcript[:200] + "..."
		}
		b.WriteString("Notes: " + transcript + "\n\n")
	}

	b.WriteString("\nTASK: Provide a brief clinical summary (3-4 sentences) highlighting:\n")
	b.WriteString("1. Key medical issues and trends\n")
	b.WriteString("2. Important alerts (allergies, recent changes)\n")
	b.WriteString("3. Recommended focus areas for today's visit\n\n")
	b.WriteString("Keep it concise and actionable for the clinician.\n")
	return b.String()
}

func firstVisitSummary(p *patient.Patient) string {
	var b strings.Builder
	b.WriteString("FIRST VISIT - New Patient\n\n")
	b.WriteString("Patient: " + p.FullName() + "\n")
	fmt.Fprintf(&b, "Allergies: %s\n", orNone(p.Allergies))
	fmt.Fprintf(&b, "Chronic Conditions: %s\n\n", orNone(p.ChronicConditions))
	b.WriteString("No prior consultations on record. Complete a full intake history.")
	return b.String()
}

func fallbackSummary(p *patient.Patient, history []consultation.Consultation) string {
	return fmt.Sprintf("%s has %d consultation(s) on record, most recently %s. Allergies: %s. Chronic conditions: %s.",
		p.FullName(), len(history), history[0].CreatedAt.Format("Jan 02, 2006"),
		orNone(p.Allergies), orNone(p.ChronicConditions))
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
