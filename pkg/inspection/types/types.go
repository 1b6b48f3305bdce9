package types

import (
	"io"
	"time"

	"cropcheck/entities"
)

type RoundHandle struct {
	InspectionID uint   `json:"inspection_id"`
	FieldID      uint   `json:"field_id"`
	ZoneID       uint   `json:"zone_id"`
	RoundNo      int    `json:"round_no"`
	Status       string `json:"status"`
	Idempotent   bool   `json:"idempotent"`
}

// Upload is one submitted file. Open is called only for accepted files.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type SavedImage struct {
	ImageID      uint   `json:"image_id"`
	ImagePath    string `json:"image_path"`
	OriginalName string `json:"original_name"`
}

type UploadResult struct {
	Saved          []SavedImage `json:"saved"`
	Skipped        int          `json:"skipped"`
	QuotaRemaining int          `json:"quota_remaining"`
}

type Quota struct {
	Max    int `json:"max"`
	Used   int `json:"used"`
	Remain int `json:"remain"`
}

type RoundDetail struct {
	Round    entities.InspectionRound `json:"round"`
	Images   []entities.ImageRecord   `json:"images"`
	Findings []entities.Finding       `json:"findings"`
	Quota    Quota                    `json:"quota"`
}

type AnalysisResult struct {
	Findings           []entities.Finding `json:"findings"`
	SkippedNormalCount int                `json:"skipped_normal_count"`
	UnknownLabels      []string           `json:"unknown_labels"`
	UpdatedCodes       []string           `json:"updated_codes"`
}

// RecommendationView is a recommendation joined with its reference names.
type RecommendationView struct {
	entities.Recommendation
	FertName     *string `json:"fert_name"`
	Formulation  *string `json:"formulation"`
	NutrientName *string `json:"nutrient_name"`
}

type RoundFilter struct {
	Page     int
	PageSize int
	Year     int
	Month    int // 1-12, only with Year
	FieldID  uint
	ZoneID   uint
	// From and To bound inspected_at (half-open), derived from Year/Month.
	From, To time.Time
}

type RoundSummary struct {
	InspectionID        uint      `json:"inspection_id"`
	FieldID             uint      `json:"field_id"`
	ZoneID              uint      `json:"zone_id"`
	FieldName           string    `json:"field_name"`
	ZoneName            string    `json:"zone_name"`
	RoundNo             int       `json:"round_no"`
	Status              string    `json:"status"`
	Notes               *string   `json:"notes"`
	InspectedAt         time.Time `json:"inspected_at"`
	ImageCount          int       `json:"image_count"`
	FindingCount        int       `json:"finding_count"`
	RecommendationCount int       `json:"recommendation_count"`
}

type RoundPage struct {
	Items    []RoundSummary `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type HistoryFilter struct {
	Group   string // month|year
	From    time.Time
	To      time.Time // exclusive
	FieldID uint
	ZoneID  uint
}

// HistoryRow is one (round, finding) pair; NutrientCode is nil for rounds
// without findings.
type HistoryRow struct {
	InspectionID uint
	InspectedAt  time.Time
	NutrientCode *string
}

type NutrientCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

type HistoryBucket struct {
	Period       string          `json:"period"`
	Rounds       int             `json:"rounds"`
	Findings     int             `json:"findings"`
	TopNutrients []NutrientCount `json:"top_nutrients"`
}
