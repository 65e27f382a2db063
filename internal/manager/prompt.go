package manager

import (
	"fmt"
	"strings"
)

const instructionTemplate = "Answer this oncology question. Context: %s. Question: %s"

// chemotherapyKeywords flag questions about chemotherapy regimens. Matching
// is a case-insensitive substring test.
var chemotherapyKeywords = []string{"chemo", "chemotherapy", "protocol", "regimen", "treatment"}

// BuildInstruction embeds the background context and the question into the
// single instruction string sent to the pipeline.
func BuildInstruction(prompt, contextText string) string {
	return fmt.Sprintf(instructionTemplate, contextText, prompt)
}

// IsChemotherapyQuery reports whether prompt mentions any chemotherapy keyword.
func IsChemotherapyQuery(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range chemotherapyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
