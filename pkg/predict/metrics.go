// pkg/predict/metrics.go
package predict

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunMetrics aggregates prediction runs and cross-validation folds
type RunMetrics struct {
	mu             sync.Mutex
	logger         *zap.Logger
	StartTime      time.Time
	SuccessfulRuns int
	FailedRuns     int
	RowsScored     int64
	RunsByKind     map[RunKind]int
	ErrorCounts    map[ErrorCategory]int
	FoldDurations  map[int]time.Duration
	Runs           []*Run
}

// NewRunMetrics creates a new RunMetrics instance
func NewRunMetrics(logger *zap.Logger) *RunMetrics {
	return &RunMetrics{
		StartTime:     time.Now(),
		RunsByKind:    make(map[RunKind]int),
		ErrorCounts:   make(map[ErrorCategory]int),
		FoldDurations: make(map[int]time.Duration),
		logger:        logger,
	}
}

// RecordRun records metrics for a completed run
func (m *RunMetrics) RecordRun(run *Run) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Runs = append(m.Runs, run)
	m.RunsByKind[run.Kind]++
	if run.Success {
		m.SuccessfulRuns++
		m.RowsScored += int64(run.Rows)
	} else {
		m.FailedRuns++
	}
	for _, e := range run.Errors {
		m.ErrorCounts[e.Category]++
	}

	if m.logger != nil {
		m.logger.Info("Recorded run",
			zap.String("run_id", run.ID),
			zap.String("kind", string(run.Kind)),
			zap.Bool("success", run.Success),
			zap.Int("rows", run.Rows),
			zap.Int("errors", len(run.Errors)),
			zap.Duration("duration", run.Duration))
	}
}

// RecordFold records how long a cross-validation fold took
func (m *RunMetrics) RecordFold(fold int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FoldDurations[fold] = duration
}

// Duration returns the time since metrics collection started
func (m *RunMetrics) Duration() time.Duration {
	return time.Since(m.StartTime)
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// getPercentage safely calculates a percentage, avoiding division by zero
func getPercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * 100
}

// GenerateMetricsReport creates a plain-text summary of the recorded runs
func (m *RunMetrics) GenerateMetricsReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.SuccessfulRuns + m.FailedRuns
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`
Prediction Metrics Report
=========================
Duration:                %s
Start Time:              %s

Runs Summary
------------
Total Runs:              %d
Successful Runs:         %d (%.1f%%)
Failed Runs:             %d (%.1f%%)
Rows Scored:             %d
`,
		formatDuration(m.Duration()),
		m.StartTime.Format(time.RFC3339),
		total,
		m.SuccessfulRuns, getPercentage(float64(m.SuccessfulRuns), float64(total)),
		m.FailedRuns, getPercentage(float64(m.FailedRuns), float64(total)),
		m.RowsScored,
	))

	if len(m.FoldDurations) > 0 {
		sb.WriteString("\nFold Durations\n--------------\n")
		folds := make([]int, 0, len(m.FoldDurations))
		for fold := range m.FoldDurations {
			folds = append(folds, fold)
		}
		sort.Ints(folds)
		for _, fold := range folds {
			sb.WriteString(fmt.Sprintf("- Fold %d: %s\n", fold, formatDuration(m.FoldDurations[fold])))
		}
	}

	if len(m.ErrorCounts) > 0 {
		sb.WriteString("\nError Distribution\n------------------\n")
		totalErrors := 0
		for _, count := range m.ErrorCounts {
			totalErrors += count
		}
		categories := make([]ErrorCategory, 0, len(m.ErrorCounts))
		for category := range m.ErrorCounts {
			categories = append(categories, category)
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
		for _, category := range categories {
			count := m.ErrorCounts[category]
			sb.WriteString(fmt.Sprintf("- %s: %d (%.1f%%)\n", category, count,
				getPercentage(float64(count), float64(totalErrors))))
		}
	}

	var records []ErrorRecord
	var warnings []string
	for _, run := range m.Runs {
		records = append(records, run.Errors...)
		for _, w := range run.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s %s: %s", run.Kind, run.ID, w))
		}
	}

	if len(records) > 0 {
		sb.WriteString("\nErrors\n------\n")
		for _, record := range records {
			sb.WriteString(fmt.Sprintf("- %s\n", record))
		}
	}

	if len(warnings) > 0 {
		sb.WriteString("\nWarnings\n--------\n")
		for _, w := range warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
	}

	return sb.String()
}

// ToJSON serializes metrics to JSON
func (m *RunMetrics) ToJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return json.Marshal(struct {
		Duration       string                `json:"duration"`
		SuccessfulRuns int                   `json:"successfulRuns"`
		FailedRuns     int                   `json:"failedRuns"`
		RowsScored     int64                 `json:"rowsScored"`
		RunsByKind     map[RunKind]int       `json:"runsByKind"`
		ErrorCounts    map[ErrorCategory]int `json:"errorCounts"`
	}{
		Duration:       formatDuration(m.Duration()),
		SuccessfulRuns: m.SuccessfulRuns,
		FailedRuns:     m.FailedRuns,
		RowsScored:     m.RowsScored,
		RunsByKind:     m.RunsByKind,
		ErrorCounts:    m.ErrorCounts,
	})
}
