// Package classifier talks to the external image classifier.
package classifier

import "context"

// Prediction is one (label, confidence) pair, confidence in [0,1].
type Prediction struct {
	Label      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// ImagePrediction holds every prediction returned for one image path.
type ImagePrediction struct {
	Image string       `json:"image"`
	Preds []Prediction `json:"preds"`
}

type Client interface {
	// Predict classifies the images at absPaths, dropping predictions below confThreshold.
	Predict(ctx context.Context, absPaths []string, confThreshold float64) ([]ImagePrediction, error)
}
