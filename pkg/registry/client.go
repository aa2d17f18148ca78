// pkg/registry/client.go
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/classifier"
	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/storage"
)

// ErrNoModelVersion is returned when the registry has no version in the stage
var ErrNoModelVersion = errors.New("no model version in stage")

// APIError is an error response from the tracking server
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("registry returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("registry returned HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// ModelVersion is a registered model version
type ModelVersion struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	CurrentStage string `json:"current_stage"`
	Source       string `json:"source"`
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
}

// Client reads registered models from an MLflow tracking server
type Client struct {
	baseURL    string
	httpClient *http.Client
	objects    storage.Store
	local      storage.Store
	logger     *zap.Logger
}

// NewClient creates a registry client. objects serves s3:// artifact
// sources and may be nil when no object store is configured.
func NewClient(cfg *config.RegistryConfig, objects storage.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.L()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.TrackingURI, "/"),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		objects:    objects,
		local:      storage.NewLocalStore(),
		logger:     logger.Named("registry"),
	}
}

// LatestVersion returns the newest version of name in stage. StageLatest
// returns the highest version across all stages.
func (c *Client) LatestVersion(ctx context.Context, name, stage string) (*ModelVersion, error) {
	req := map[string]interface{}{"name": name}
	if !strings.EqualFold(stage, StageLatest) {
		req["stages"] = []string{stage}
	}

	var resp struct {
		ModelVersions []ModelVersion `json:"model_versions"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/2.0/mlflow/registered-models/get-latest-versions", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", FormatModelURI(name, stage), err)
	}

	var best *ModelVersion
	bestVersion := -1
	for i := range resp.ModelVersions {
		mv := &resp.ModelVersions[i]
		if !strings.EqualFold(stage, StageLatest) && !strings.EqualFold(mv.CurrentStage, stage) {
			continue
		}
		v, err := strconv.Atoi(mv.Version)
		if err != nil {
			continue
		}
		if v > bestVersion {
			best, bestVersion = mv, v
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoModelVersion, FormatModelURI(name, stage))
	}
	return best, nil
}

// LoadModel resolves models:/<name>/<stage> and decodes its pipeline
func (c *Client) LoadModel(ctx context.Context, name, stage string) (*classifier.Pipeline, *ModelVersion, error) {
	if stage == "" {
		stage = DefaultStage
	}

	mv, err := c.LatestVersion(ctx, name, stage)
	if err != nil {
		return nil, nil, err
	}

	rc, err := c.openArtifact(ctx, mv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact of %s version %s: %w", name, mv.Version, err)
	}
	defer rc.Close()

	pipeline, err := classifier.Load(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s version %s: %w", name, mv.Version, err)
	}

	c.logger.Info("Loaded model from registry",
		zap.String("uri", FormatModelURI(name, stage)),
		zap.String("version", mv.Version),
		zap.String("source", mv.Source),
		zap.Strings("features", pipeline.SelectedFeatures()))

	return pipeline, mv, nil
}

// LoadModelURI loads a model addressed as models:/<name>/<stage>
func (c *Client) LoadModelURI(ctx context.Context, uri string) (*classifier.Pipeline, *ModelVersion, error) {
	name, stage, err := ParseModelURI(uri)
	if err != nil {
		return nil, nil, err
	}
	return c.LoadModel(ctx, name, stage)
}

// openArtifact opens model.json under the version source
func (c *Client) openArtifact(ctx context.Context, mv *ModelVersion) (io.ReadCloser, error) {
	source := mv.Source
	if strings.HasPrefix(source, "runs:/") {
		resolved, err := c.resolveRunURI(ctx, source)
		if err != nil {
			return nil, err
		}
		source = resolved
	}

	artifactPath := strings.TrimRight(source, "/") + "/" + classifier.ArtifactFileName

	switch {
	case strings.HasPrefix(source, "s3://"):
		if c.objects == nil {
			return nil, fmt.Errorf("%w for %s", storage.ErrNoRemoteStore, source)
		}
		return c.objects.Open(ctx, artifactPath)

	case strings.HasPrefix(source, "mlflow-artifacts:"):
		rel := strings.TrimLeft(strings.TrimPrefix(artifactPath, "mlflow-artifacts:"), "/")
		return c.download(ctx, "/api/2.0/mlflow-artifacts/artifacts/"+rel)

	case strings.HasPrefix(source, "file://"):
		return c.local.Open(ctx, strings.TrimPrefix(artifactPath, "file://"))

	case !strings.Contains(source, "://"):
		return c.local.Open(ctx, artifactPath)

	default:
		return nil, fmt.Errorf("unsupported artifact source %q", source)
	}
}

// resolveRunURI turns runs:/<run_id>/<path> into the run's artifact location
func (c *Client) resolveRunURI(ctx context.Context, uri string) (string, error) {
	runID, path, _ := strings.Cut(strings.TrimPrefix(uri, "runs:/"), "/")
	if runID == "" {
		return "", fmt.Errorf("invalid run URI %q", uri)
	}

	var resp struct {
		Run struct {
			Info struct {
				ArtifactURI string `json:"artifact_uri"`
			} `json:"info"`
		} `json:"run"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/2.0/mlflow/runs/get?run_id="+url.QueryEscape(runID), nil, &resp); err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", uri, err)
	}
	if resp.Run.Info.ArtifactURI == "" {
		return "", fmt.Errorf("run %s has no artifact URI", runID)
	}
	return strings.TrimRight(resp.Run.Info.ArtifactURI, "/") + "/" + strings.Trim(path, "/"), nil
}

// call sends a JSON request and decodes the JSON response into out
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// download streams a file from the tracking server
func (c *Client) download(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download of %s failed: %w", path, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	default:
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
