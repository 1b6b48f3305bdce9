package service

import (
	"context"

	"cropcheck/entities"
	"cropcheck/pkg/inspection/types"
)

type InspectionService interface {
	StartRound(ctx context.Context, uid string, fieldID, zoneID uint, notes *string, forceNew bool) (types.RoundHandle, error)
	UploadImages(ctx context.Context, uid string, roundID uint, files []types.Upload) (types.UploadResult, error)
	GetDetail(ctx context.Context, uid string, roundID uint) (types.RoundDetail, error)
	Analyze(ctx context.Context, uid string, roundID uint) (types.AnalysisResult, error)
	Complete(ctx context.Context, uid string, roundID uint) (types.RoundHandle, error)

	ListRecommendations(ctx context.Context, uid string, roundID uint) ([]types.RecommendationView, error)
	SetRecommendationStatus(ctx context.Context, uid string, recID uint, status string, appliedDate *string) (*entities.Recommendation, error)

	ListRounds(ctx context.Context, uid string, f types.RoundFilter) (types.RoundPage, error)
	History(ctx context.Context, uid string, f types.HistoryFilter) ([]types.HistoryBucket, error)
}
