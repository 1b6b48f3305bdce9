package diagnosis

import (
	"math"
	"strings"

	"cropcheck/pkg/classifier"
)

// Observation is the retained finding for one nutrient code.
type Observation struct {
	Code       string
	Severity   Severity
	Confidence float64 // percent
	Image      string
}

type Result struct {
	Findings      []Observation // first-seen order of each code
	SkippedNormal int
	UnknownLabels []string // de-duplicated, first-seen order
}

// Codes lists the codes of the retained findings.
func (r Result) Codes() []string {
	out := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Code)
	}
	return out
}

// Aggregate keeps the highest-confidence observation per nutrient code across
// every image; ties keep the first observation.
func Aggregate(images []classifier.ImagePrediction, r *Resolver) Result {
	var res Result
	idx := map[string]int{}
	seenUnknown := map[string]struct{}{}

	for _, img := range images {
		for _, p := range img.Preds {
			code, kind := r.Resolve(p.Label)
			switch kind {
			case LabelNormal:
				res.SkippedNormal++
				continue
			case LabelUnknown:
				label := strings.TrimSpace(p.Label)
				if label == "" {
					continue
				}
				if _, dup := seenUnknown[label]; !dup {
					seenUnknown[label] = struct{}{}
					res.UnknownLabels = append(res.UnknownLabels, label)
				}
				continue
			}

			if math.IsNaN(p.Confidence) {
				continue
			}
			raw := clamp01(p.Confidence) * 100
			pct := math.Round(raw*1000) / 1000
			obs := Observation{Code: code, Severity: ClassifySeverity(raw), Confidence: pct, Image: img.Image}

			if i, ok := idx[code]; ok {
				if pct > res.Findings[i].Confidence {
					res.Findings[i] = obs
				}
				continue
			}
			idx[code] = len(res.Findings)
			res.Findings = append(res.Findings, obs)
		}
	}
	return res
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
