package analysis

// LocalizedText maps a language code to the text in that language.
type LocalizedText map[string]string

// Record is the structured output of one successful image analysis.
type Record struct {
	Question     LocalizedText            `json:"question"`
	Options      map[string]LocalizedText `json:"options"`
	CorrectLabel string                   `json:"correctLabel"`
	Explanations []LocalizedText          `json:"explanations"`
	Languages    []string                 `json:"languages"`
}

// Input carries one image (or PDF-derived text) to the analysis service.
type Input struct {
	FileName   string
	MimeType   string
	Content    []byte
	SourceText string
	Languages  []string
}

// OptionLabels is the bounded alphabet for answer options. Absent labels are
// allowed; labels outside this set are rejected as malformed.
var OptionLabels = []string{"A", "B", "C", "D", "E"}

func validLabel(label string) bool {
	for _, l := range OptionLabels {
		if l == label {
			return true
		}
	}
	return false
}
