package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/signintech/gopdf"

	"clinical-scribe/internal/consultation"
)

// Service renders a generated note as a PDF for download or hand-off to the
// clinician channel.
type Service struct {
	fontPaths []string
}

func NewService() *Service {
	return &Service{
		// Common DejaVu locations across Debian and Alpine images.
		fontPaths: []string{
			"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		},
	}
}

// Render produces the consultation note PDF.
func (s *Service) Render(c *consultation.Consultation, note *consultation.GeneratedNote) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, ensure ttf-dejavu is installed: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Consultation Note")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Consultation: %s", c.ID))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Patient: %s", c.PatientID))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Date: %s", note.CreatedAt.Format("02 Jan 2006 15:04")))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Confidence: %.2f", note.Confidence))
	pdf.Br(22)

	sections := []struct {
		title string
		body  string
	}{
		{"Subjective", note.SoapSubjective},
		{"Objective", note.SoapObjective},
		{"Assessment", note.SoapAssessment},
		{"Plan", note.SoapPlan},
	}
	for _, sec := range sections {
		if err := s.writeSection(&pdf, sec.title, sec.body); err != nil {
			return nil, err
		}
	}

	if codes := formatICD10(note.ICD10Codes); codes != "" {
		if err := s.writeSection(&pdf, "Suggested ICD-10 Codes", codes); err != nil {
			return nil, err
		}
	}
	if note.PatientSummary != "" {
		if err := s.writeSection(&pdf, "Patient Summary", note.PatientSummary); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) writeSection(pdf *gopdf.GoPdf, title, body string) error {
	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return err
	}
	pdf.Cell(nil, title)
	pdf.Br(15)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return err
	}
	if body == "" {
		body = "-"
	}
	lines, _ := pdf.SplitText(body, 500)
	for _, l := range lines {
		pdf.Cell(nil, l)
		pdf.Br(12)
	}
	pdf.Br(10)
	return nil
}

// formatICD10 turns the stored suggestion JSON into printable lines; raw JSON
// that fails to parse is printed as-is rather than dropped.
func formatICD10(raw string) string {
	if raw == "" {
		return ""
	}
	var suggestions []consultation.ICD10Suggestion
	if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
		return raw
	}
	var out bytes.Buffer
	for _, s := range suggestions {
		fmt.Fprintf(&out, "%s  %s (confidence %.2f)\n", s.Code, s.Desc, s.Confidence)
	}
	return out.String()
}
