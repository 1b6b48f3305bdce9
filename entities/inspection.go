package entities

import "time"

const (
	RoundOpen   = "open"
	RoundClosed = "closed"
)

const (
	RecSuggested = "suggested"
	RecApplied   = "applied"
	RecSkipped   = "skipped"
)

// InspectionRound is one inspection cycle on a field zone. At most one round
// per (field, zone) is open at a time.
type InspectionRound struct {
	InspectionID uint      `gorm:"primaryKey" json:"inspection_id"`
	FieldID      uint      `json:"field_id" gorm:"index:idx_round_field_zone"`
	ZoneID       uint      `json:"zone_id" gorm:"index:idx_round_field_zone"`
	RoundNo      int       `json:"round_no"`
	Status       string    `json:"status" gorm:"size:16;index"` // open|closed
	Notes        *string   `json:"notes"`
	InspectedAt  time.Time `json:"inspected_at" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ImageMeta struct {
	OriginalName string `json:"original_name"`
	SavedName    string `json:"saved_name"`
	SavedAtUTC   string `json:"saved_at_utc"`
}

type ImageRecord struct {
	ImageID      uint      `gorm:"primaryKey" json:"image_id"`
	InspectionID uint      `json:"inspection_id" gorm:"index"`
	ImagePath    string    `json:"image_path" gorm:"size:512"`
	CapturedAt   time.Time `json:"captured_at"`
	Meta         ImageMeta `json:"meta" gorm:"serializer:json"`
}

type Finding struct {
	FindingID    uint    `gorm:"primaryKey" json:"finding_id"`
	InspectionID uint    `json:"inspection_id" gorm:"index"`
	NutrientCode string  `json:"nutrient_code" gorm:"size:16"`
	Severity     string  `json:"severity" gorm:"size:16"` // mild|moderate|severe
	Confidence   float64 `json:"confidence"`              // 0-100
	Notes        *string `json:"notes"`
}

// Recommendation is keyed by (inspection, nutrient code). Status and
// AppliedDate belong to the operator.
type Recommendation struct {
	RecommendationID   uint      `gorm:"primaryKey" json:"recommendation_id"`
	InspectionID       uint      `json:"inspection_id" gorm:"uniqueIndex:ux_rec_round_code"`
	NutrientCode       string    `json:"nutrient_code" gorm:"size:16;uniqueIndex:ux_rec_round_code"`
	FertilizerID       *uint     `json:"fertilizer_id"`
	RecommendationText string    `json:"recommendation_text"`
	RatePerArea        string    `json:"rate_per_area"`
	ApplicationMethod  string    `json:"application_method"`
	Status             string    `json:"status" gorm:"size:16"` // suggested|applied|skipped
	AppliedDate        *string   `json:"applied_date" gorm:"size:10"` // YYYY-MM-DD
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
