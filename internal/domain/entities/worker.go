package entities

import "context"

// RequestForm is the worker-facing view of a job: whatever a concrete
// worker needs extracted from the request event to do its work.
type RequestForm struct {
	JobID   string
	Inputs  []Input
	Params  map[string][]string
	Outputs []string
}

// Worker is the capability set a task implementor must satisfy (spec.md §3).
// Concrete workers (text extraction, image generation, ...) are external
// collaborators; the dispatcher only ever sees this interface.
type Worker interface {
	// Task is the catalogue key this worker registers under.
	Task() string
	// Kind is the request kind family this worker answers (e.g. NIP-90 job kind).
	Kind() int
	// FixCost and PerUnitCost price the job: amount = FixCost + PerUnitCost*Duration.
	FixCost() int64
	PerUnitCost() int64
	// BuildRequestForm maps a JobRequest onto the worker's input shape.
	BuildRequestForm(req JobRequest) (RequestForm, error)
	// Run executes the job and returns the raw result bytes.
	Run(ctx context.Context, form RequestForm) ([]byte, error)
	// PostProcess transforms raw result bytes before publication. Workers
	// with nothing to do here should return result unchanged.
	PostProcess(ctx context.Context, result []byte, req JobRequest) ([]byte, error)
}

// DurationEstimator estimates the unit count a priced task should bill for (e.g.
// media length in seconds). Tasks priced at a flat FixCost return 0.
type DurationEstimator interface {
	EstimateDuration(req JobRequest) (int64, bool)
}
