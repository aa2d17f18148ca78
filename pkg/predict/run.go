// pkg/predict/run.go
package predict

import (
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/credit-risk/pkg/storage"
)

// RunKind names the operation a run performed
type RunKind string

const (
	RunKindCrossValidation RunKind = "cross_validation"
	RunKindPredict         RunKind = "predict"
	RunKindRegistryPredict RunKind = "registry_predict"
)

// Run records a single prediction invocation
type Run struct {
	ID           string
	Kind         RunKind
	ModelURI     string
	ModelVersion string
	Input        string
	Output       string
	OutputSource storage.Source
	Rows         int
	Folds        int
	Success      bool
	Errors       []ErrorRecord
	Warnings     []string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

// NewRun starts a run of the given kind
func NewRun(kind RunKind) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		StartTime: time.Now(),
		Errors:    make([]ErrorRecord, 0),
		Warnings:  make([]string, 0),
	}
}

// Complete marks the run as complete and calculates duration
func (r *Run) Complete(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success && !r.HasErrors()
}

// AddError adds an error to the run
func (r *Run) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// AddWarning adds a warning to the run
func (r *Run) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// HasErrors checks if any errors occurred
func (r *Run) HasErrors() bool {
	return len(r.Errors) > 0
}
