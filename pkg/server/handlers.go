// pkg/server/handlers.go
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/model"
	"github.com/David-Botos/credit-risk/pkg/registry"
)

// PredictRequest carries the applicant rows to score. Values may be JSON
// strings or numbers; keys are matched after trimming whitespace.
type PredictRequest struct {
	Rows []map[string]interface{} `json:"rows" binding:"required,min=1"`
}

// Prediction is the result for one row
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// PredictResponse is returned by POST /v1/predict
type PredictResponse struct {
	Success     bool         `json:"success"`
	ModelURI    string       `json:"model_uri,omitempty"`
	Version     string       `json:"version,omitempty"`
	Predictions []Prediction `json:"predictions,omitempty"`
	Message     string       `json:"message,omitempty"`
	Error       string       `json:"error,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status":       "ok",
		"service":      "credit-risk",
		"model_loaded": false,
	}
	if m, err := s.model(); err == nil {
		resp["model_loaded"] = true
		resp["version"] = m.version.Version
		resp["loaded_at"] = m.loadedAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, PredictResponse{
			Message: "Invalid request data",
			Error:   err.Error(),
		})
		return
	}

	m, err := s.model()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, PredictResponse{
			Message: fmt.Sprintf("No model in %s stage", s.stage),
			Error:   err.Error(),
		})
		return
	}

	X, err := requestDataset(m.pipeline.Preprocessor.FeatureNamesOut(), req.Rows)
	if err != nil {
		c.JSON(http.StatusBadRequest, PredictResponse{
			Message: "Invalid request data",
			Error:   err.Error(),
		})
		return
	}

	proba, err := m.pipeline.PredictProba(X)
	if err != nil {
		c.JSON(http.StatusBadRequest, PredictResponse{
			Message: "Prediction failed",
			Error:   err.Error(),
		})
		return
	}

	labels := m.pipeline.Labels(proba)
	predictions := make([]Prediction, len(labels))
	for i, label := range labels {
		predictions[i] = Prediction{Label: label, Probability: proba[i][1]}
		s.metrics.Predictions.WithLabelValues(label).Inc()
	}

	c.JSON(http.StatusOK, PredictResponse{
		Success:     true,
		ModelURI:    registry.FormatModelURI(s.name, s.stage),
		Version:     m.version.Version,
		Predictions: predictions,
	})
}

func (s *Server) reload(c *gin.Context) {
	mv, err := s.LoadModel(c.Request.Context())
	if err != nil {
		s.logger.Warn("Model reload failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": fmt.Sprintf("No model in %s stage", s.stage),
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"model_uri": registry.FormatModelURI(s.name, s.stage),
		"version":   mv.Version,
	})
}

// requestDataset lays the request rows out as a dataset over the model's
// input columns. Absent values become empty cells.
func requestDataset(columns []string, rows []map[string]interface{}) (*model.Dataset, error) {
	cells := make([][]string, len(rows))
	for i, row := range rows {
		trimmed := make(map[string]interface{}, len(row))
		for k, v := range row {
			trimmed[strings.TrimSpace(k)] = v
		}

		cells[i] = make([]string, len(columns))
		for j, col := range columns {
			v, ok := trimmed[col]
			if !ok || v == nil {
				continue
			}
			cell, err := formatCell(v)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", i, col, err)
			}
			cells[i][j] = cell
		}
	}
	return model.NewDataset(append([]string(nil), columns...), cells)
}

func formatCell(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
