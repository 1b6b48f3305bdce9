package classifier

import (
	"context"
	"path/filepath"
	"strings"
)

type mockClient struct{}

// NewMock returns a deterministic classifier used when no detector endpoint
// is configured. It keys off nutrient names in the file name and reports
// "normal" otherwise.
func NewMock() Client { return &mockClient{} }

var mockKeywords = []struct {
	key   string
	label string
	conf  float64
}{
	{"nitrogen", "Nitrogen", 0.88},
	{"phosph", "Phosphorus", 0.71},
	{"potass", "Potassium", 0.92},
	{"magnes", "Magnesium", 0.66},
	{"calcium", "Calcium", 0.58},
	{"zinc", "Zinc", 0.62},
	{"iron", "Iron", 0.55},
}

func (m *mockClient) Predict(ctx context.Context, absPaths []string, confThreshold float64) ([]ImagePrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]ImagePrediction, 0, len(absPaths))
	for _, p := range absPaths {
		name := strings.ToLower(filepath.Base(p))
		var preds []Prediction
		for _, k := range mockKeywords {
			if strings.Contains(name, k.key) && k.conf >= confThreshold {
				preds = append(preds, Prediction{Label: k.label, Confidence: k.conf})
			}
		}
		if len(preds) == 0 {
			preds = append(preds, Prediction{Label: "normal", Confidence: 0.9})
		}
		out = append(out, ImagePrediction{Image: p, Preds: preds})
	}
	return out, nil
}
