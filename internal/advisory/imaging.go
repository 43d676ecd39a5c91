package advisory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"clinical-scribe/internal/llm"
)

type Imaging struct {
	llm llm.Client
}

func NewImaging(client llm.Client) *Imaging {
	return &Imaging{llm: client}
}

// DescribeFindings drafts a narrative description of reported imaging
// findings for the given modality and body part. It works from the
// clinician's dictated observations; image transport is a separate concern.
func (i *Imaging) DescribeFindings(ctx context.Context, modality, bodyPart, observations string) string {
	log.Printf("Generating imaging findings description (%s, %s)", modality, bodyPart)

	var b strings.Builder
	b.WriteString("You are a radiology reporting assistant. Turn the clinician's dictated observations into a structured findings paragraph.\n\n")
	fmt.Fprintf(&b, "MODALITY: %s\n", modality)
	fmt.Fprintf(&b, "BODY PART: %s\n\n", bodyPart)
	b.WriteString("OBSERVATIONS:\n" + observations + "\n\n")
	b.WriteString("TASK: Write a concise findings section in standard radiology register. ")
	b.WriteString("Do not add findings not present in the observations. End with a one-line impression.\n")

	resp, err := i.llm.RunPrompt(ctx, b.String(), llm.Options{Temperature: 0.2, MaxTokens: 400})
	if err != nil {
		log.Printf("Failed to generate imaging description: %v", err)
		return fmt.Sprintf("FINDINGS (%s, %s): %s\nIMPRESSION: Formal review pending.", modality, bodyPart, observations)
	}
	return resp.Content
}
