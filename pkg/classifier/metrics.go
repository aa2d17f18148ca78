// pkg/classifier/metrics.go
package classifier

import "fmt"

// ConfusionMatrix counts binary outcomes against a positive class
type ConfusionMatrix struct {
	TruePositives  int `json:"tp"`
	FalsePositives int `json:"fp"`
	TrueNegatives  int `json:"tn"`
	FalseNegatives int `json:"fn"`
}

// Report summarises predictions against the true labels
type Report struct {
	Positive  string          `json:"positive"`
	Support   int             `json:"support"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Confusion ConfusionMatrix `json:"confusion"`
}

// Evaluate compares predicted with true labels. Ratios with an empty
// denominator are 0.
func Evaluate(yTrue, yPred []string, positive string) (Report, error) {
	if len(yTrue) != len(yPred) {
		return Report{}, fmt.Errorf("yTrue has %d labels, yPred has %d", len(yTrue), len(yPred))
	}

	var cm ConfusionMatrix
	correct := 0
	for i := range yTrue {
		actual, predicted := yTrue[i] == positive, yPred[i] == positive
		if yTrue[i] == yPred[i] {
			correct++
		}
		switch {
		case actual && predicted:
			cm.TruePositives++
		case !actual && predicted:
			cm.FalsePositives++
		case actual && !predicted:
			cm.FalseNegatives++
		default:
			cm.TrueNegatives++
		}
	}

	r := Report{
		Positive:  positive,
		Support:   len(yTrue),
		Confusion: cm,
		Accuracy:  ratio(correct, len(yTrue)),
		Precision: ratio(cm.TruePositives, cm.TruePositives+cm.FalsePositives),
		Recall:    ratio(cm.TruePositives, cm.TruePositives+cm.FalseNegatives),
	}
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
