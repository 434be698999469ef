package analysis

import "strings"

// ValidateRecord checks a parsed response for required content. Every text
// field must carry every required language; partial translations are rejected.
// Violations are classified Malformed so callers never retry them.
func ValidateRecord(rec Record, languages []string) error {
	if len(languages) == 0 {
		return newError(KindMalformed, "no required languages configured")
	}
	if err := checkLocalized("question", rec.Question, languages); err != nil {
		return err
	}
	if len(rec.Options) < 2 {
		return newError(KindMalformed, "expected at least 2 options, got %d", len(rec.Options))
	}
	for label, text := range rec.Options {
		if !validLabel(label) {
			return newError(KindMalformed, "option label %q outside A-E", label)
		}
		if err := checkLocalized("option "+label, text, languages); err != nil {
			return err
		}
	}
	if !validLabel(rec.CorrectLabel) {
		return newError(KindMalformed, "correct label %q outside A-E", rec.CorrectLabel)
	}
	if _, ok := rec.Options[rec.CorrectLabel]; !ok {
		return newError(KindMalformed, "correct label %q has no matching option", rec.CorrectLabel)
	}
	if len(rec.Explanations) == 0 {
		return newError(KindMalformed, "missing explanations")
	}
	for _, expl := range rec.Explanations {
		if err := checkLocalized("explanation", expl, languages); err != nil {
			return err
		}
	}
	return nil
}

func checkLocalized(field string, text LocalizedText, languages []string) error {
	if len(text) == 0 {
		return newError(KindMalformed, "missing %s", field)
	}
	for _, lang := range languages {
		if strings.TrimSpace(text[lang]) == "" {
			return newError(KindMalformed, "%s missing language %q", field, lang)
		}
	}
	return nil
}
