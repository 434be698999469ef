package analysis

import "testing"

var testLangs = []string{"en", "de"}

func validRecord() Record {
	return Record{
		Question: LocalizedText{"en": "What is 2+2?", "de": "Was ist 2+2?"},
		Options: map[string]LocalizedText{
			"A": {"en": "3", "de": "3"},
			"B": {"en": "4", "de": "4"},
		},
		CorrectLabel: "B",
		Explanations: []LocalizedText{
			{"en": "Basic addition.", "de": "Einfache Addition."},
		},
		Languages: testLangs,
	}
}

func TestValidateRecordAccepts(t *testing.T) {
	if err := ValidateRecord(validRecord(), testLangs); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}
}

func TestValidateRecordRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Record)
	}{
		{"missing question", func(r *Record) { r.Question = nil }},
		{"partial question translation", func(r *Record) { delete(r.Question, "de") }},
		{"blank translation", func(r *Record) { r.Question["de"] = "  " }},
		{"single option", func(r *Record) { delete(r.Options, "A") }},
		{"label outside alphabet", func(r *Record) { r.Options["F"] = LocalizedText{"en": "5", "de": "5"} }},
		{"partial option translation", func(r *Record) { delete(r.Options["A"], "de") }},
		{"invalid correct label", func(r *Record) { r.CorrectLabel = "Z" }},
		{"correct label without option", func(r *Record) { r.CorrectLabel = "C" }},
		{"missing explanations", func(r *Record) { r.Explanations = nil }},
		{"partial explanation translation", func(r *Record) { delete(r.Explanations[0], "en") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mutate(&rec)
			err := ValidateRecord(rec, testLangs)
			if err == nil {
				t.Fatalf("expected rejection")
			}
			if Classify(err) != KindMalformed {
				t.Fatalf("expected malformed classification, got %v", Classify(err))
			}
		})
	}
}

func TestValidateRecordSingleLanguage(t *testing.T) {
	rec := Record{
		Question:     LocalizedText{"en": "Capital of France?"},
		Options:      map[string]LocalizedText{"A": {"en": "Paris"}, "B": {"en": "Lyon"}},
		CorrectLabel: "A",
		Explanations: []LocalizedText{{"en": "Paris is the capital."}},
	}
	if err := ValidateRecord(rec, []string{"en"}); err != nil {
		t.Fatalf("single-language record should validate: %v", err)
	}
}
