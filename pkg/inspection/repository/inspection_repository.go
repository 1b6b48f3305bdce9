package repository

import (
	"context"

	"cropcheck/entities"
	"cropcheck/pkg/inspection/types"
)

// InspectionRepository is the store behind rounds, images, findings and
// recommendations. Lookups return gorm.ErrRecordNotFound for missing rows,
// except FindOpenRound and FindRecommendation, which return nil, nil.
type InspectionRepository interface {
	// Transaction runs fn against a repository bound to one store transaction.
	Transaction(ctx context.Context, fn func(r InspectionRepository) error) error

	FindField(ctx context.Context, id uint, forUpdate bool) (*entities.Field, error)
	FindZone(ctx context.Context, id uint) (*entities.Zone, error)

	FindRound(ctx context.Context, id uint, forUpdate bool) (*entities.InspectionRound, error)
	FindOpenRound(ctx context.Context, fieldID, zoneID uint) (*entities.InspectionRound, error)
	MaxRoundNo(ctx context.Context, fieldID, zoneID uint) (int, error)
	CreateRound(ctx context.Context, r *entities.InspectionRound) error
	SetRoundStatus(ctx context.Context, id uint, status string) error
	ListRounds(ctx context.Context, uid string, f types.RoundFilter) ([]types.RoundSummary, int64, error)
	ListHistoryRows(ctx context.Context, uid string, f types.HistoryFilter) ([]types.HistoryRow, error)

	CountImages(ctx context.Context, roundID uint) (int, error)
	CreateImage(ctx context.Context, img *entities.ImageRecord) error
	ListImages(ctx context.Context, roundID uint) ([]entities.ImageRecord, error)

	ListFindings(ctx context.Context, roundID uint) ([]entities.Finding, error)
	ReplaceFindings(ctx context.Context, roundID uint, fs []entities.Finding) error
	ValidNutrientCodes(ctx context.Context) ([]string, error)

	ListFertilizers(ctx context.Context) ([]entities.Fertilizer, error)
	FindRecommendation(ctx context.Context, roundID uint, code string) (*entities.Recommendation, error)
	CreateRecommendation(ctx context.Context, rec *entities.Recommendation) error
	UpdateRecommendation(ctx context.Context, rec *entities.Recommendation) error
	FindRecommendationByID(ctx context.Context, id uint) (*entities.Recommendation, error)
	SetRecommendationStatus(ctx context.Context, id uint, status string, appliedDate *string) error
	ListRecommendationViews(ctx context.Context, roundID uint) ([]types.RecommendationView, error)
}
