package repositoryImp

import (
	"context"

	"gorm.io/gorm"

	"cropcheck/entities"
	"cropcheck/pkg/reference/repository"
)

type referenceRepo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.ReferenceRepository { return &referenceRepo{db} }

func (r *referenceRepo) ListNutrients(ctx context.Context) ([]entities.NutrientDeficiency, error) {
	var out []entities.NutrientDeficiency
	err := r.db.WithContext(ctx).Order("nutrient_code ASC").Find(&out).Error
	return out, err
}

func (r *referenceRepo) ListFertilizers(ctx context.Context) ([]entities.Fertilizer, error) {
	var out []entities.Fertilizer
	err := r.db.WithContext(ctx).Order("fert_name ASC").Find(&out).Error
	return out, err
}
