package pipeline

import (
	"github.com/google/uuid"

	"examscan-backend/internal/analysis"
	"examscan-backend/internal/fingerprint"
)

// File is one pre-filtered input handed to the pipeline by the upload surface.
type File struct {
	Name       string
	MimeType   string
	SizeBytes  int64
	Content    []byte
	SourceText string
	StorageKey string
}

// Job is one unit of work per input file. Never mutated after creation;
// results are keyed separately by fingerprint.
type Job struct {
	ID          string
	File        File
	Fingerprint string
}

// NewJob builds a job with a process-unique id and the file's fingerprint.
func NewJob(f File) Job {
	return Job{
		ID:          uuid.NewString(),
		File:        f,
		Fingerprint: fingerprint.ForFile(f.Name, f.SizeBytes, f.Content),
	}
}

// Outcome is the terminal result of one job: a record, or a classified error.
type Outcome struct {
	Job       Job
	Record    analysis.Record
	FromCache bool
	Err       error
}

// Failed reports whether the job ended in a permanent failure.
func (o Outcome) Failed() bool { return o.Err != nil }
