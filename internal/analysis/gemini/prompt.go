package gemini

import (
	"fmt"
	"strings"
)

// BuildInstruction renders the fixed extraction instruction for one request.
// The response contract mirrors analysis.Record: every text field is a map of
// language code to string covering every requested language.
func BuildInstruction(languages []string, sourceText string) string {
	langList := strings.Join(languages, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, `You are given a photo or scan of a single multiple-choice exam question.
Extract it into STRICT JSON with this exact shape:
{
  "question": {%[1]s},
  "options": {"A": {%[1]s}, "B": {%[1]s}, ...},
  "correctLabel": "A",
  "explanations": [{%[1]s}]
}
Rules:
- Option labels are capital letters A-E. Include only labels visible in the source.
- "correctLabel" is the letter of the correct answer. Work it out if it is not marked.
- "explanations" holds one or more short texts justifying the correct answer.
- Provide EVERY text in EVERY one of these languages: %[2]s. No partial translations.
- Output JSON only, no markdown fences, no commentary.`,
		langPlaceholders(languages), langList)

	if strings.TrimSpace(sourceText) != "" {
		fmt.Fprintf(&b, "\n\nText extracted from the source document, use it to resolve unreadable regions:\n%s", sourceText)
	}
	return b.String()
}

func langPlaceholders(languages []string) string {
	parts := make([]string, 0, len(languages))
	for _, lang := range languages {
		parts = append(parts, fmt.Sprintf("%q: string", lang))
	}
	return strings.Join(parts, ", ")
}
