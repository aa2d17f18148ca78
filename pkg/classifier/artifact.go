// pkg/classifier/artifact.go
package classifier

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/dataprep"
)

// ArtifactFileName is the file name of a saved pipeline inside a model directory
const ArtifactFileName = "model.json"

const formatVersion = 1

var (
	// ErrChecksumMismatch is returned when a saved pipeline fails verification
	ErrChecksumMismatch = errors.New("checksum mismatch: artifact may be corrupted")

	// ErrUnsupportedVersion is returned for artifacts written by a newer format
	ErrUnsupportedVersion = errors.New("unsupported artifact format version")
)

type artifact struct {
	FormatVersion int             `json:"format_version"`
	CreatedAt     time.Time       `json:"created_at"`
	Checksum      string          `json:"checksum"`
	Pipeline      json.RawMessage `json:"pipeline"`
}

type pipelineDoc struct {
	Classes          []string                    `json:"classes"`
	Preprocessor     *dataprep.ColumnTransformer `json:"preprocessor"`
	Selector         *dataprep.SelectKBest       `json:"selector"`
	EstimatorType    string                      `json:"estimator_type"`
	Estimator        json.RawMessage             `json:"estimator"`
	SelectedFeatures []string                    `json:"selected_features"`
}

// Save writes a fitted pipeline as a JSON artifact
func Save(w io.Writer, p *Pipeline) error {
	if p.Classes == nil {
		return ErrNotFitted
	}

	est, err := json.Marshal(p.Estimator)
	if err != nil {
		return fmt.Errorf("failed to encode estimator: %w", err)
	}

	body, err := json.Marshal(pipelineDoc{
		Classes:          p.Classes,
		Preprocessor:     p.Preprocessor,
		Selector:         p.Selector,
		EstimatorType:    p.Estimator.Name(),
		Estimator:        est,
		SelectedFeatures: p.SelectedFeatures(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}

	sum := sha256.Sum256(body)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact{
		FormatVersion: formatVersion,
		CreatedAt:     time.Now().UTC(),
		Checksum:      hex.EncodeToString(sum[:]),
		Pipeline:      body,
	}); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Load reads a pipeline written by Save and verifies its checksum
func Load(r io.Reader) (*Pipeline, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	if a.FormatVersion != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.FormatVersion)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, a.Pipeline); err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	sum := sha256.Sum256(compact.Bytes())
	if hex.EncodeToString(sum[:]) != a.Checksum {
		return nil, ErrChecksumMismatch
	}

	var doc pipelineDoc
	if err := json.Unmarshal(compact.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline: %w", err)
	}
	if len(doc.Classes) != 2 || doc.Preprocessor == nil || doc.Preprocessor.Encoder == nil || doc.Selector == nil {
		return nil, errors.New("artifact does not hold a fitted pipeline")
	}

	est, err := NewEstimator(doc.EstimatorType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc.Estimator, est); err != nil {
		return nil, fmt.Errorf("failed to decode %s estimator: %w", doc.EstimatorType, err)
	}

	selector := dataprep.NewSelectKBest(doc.Selector.K, zap.L())
	selector.NFeatures = doc.Selector.NFeatures
	selector.Support = doc.Selector.Support
	if selector.Support == nil {
		selector.Support = []int{}
	}

	return &Pipeline{
		Classes:      doc.Classes,
		Preprocessor: doc.Preprocessor,
		Selector:     selector,
		Estimator:    est,
	}, nil
}
