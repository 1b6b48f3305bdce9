package repository

import (
	"context"

	"cropcheck/entities"
)

type ReferenceRepository interface {
	ListNutrients(ctx context.Context) ([]entities.NutrientDeficiency, error)
	ListFertilizers(ctx context.Context) ([]entities.Fertilizer, error)
}
