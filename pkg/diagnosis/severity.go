package diagnosis

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

const (
	severeFrom   = 85.0
	moderateFrom = 65.0

	// absorbs float noise such as 0.65*100 landing just under a threshold
	epsilon = 1e-9
)

// ClassifySeverity maps a confidence percentage (0-100) to a tier. Each
// threshold is inclusive at its lower bound.
func ClassifySeverity(confidencePercent float64) Severity {
	confidencePercent += epsilon
	switch {
	case confidencePercent >= severeFrom:
		return SeveritySevere
	case confidencePercent >= moderateFrom:
		return SeverityModerate
	default:
		return SeverityMild
	}
}
