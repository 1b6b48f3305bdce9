package repositoryImp

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cropcheck/entities"
	"cropcheck/pkg/inspection/repository"
	"cropcheck/pkg/inspection/types"
)

type inspectionRepo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.InspectionRepository { return &inspectionRepo{db} }

func (r *inspectionRepo) Transaction(ctx context.Context, fn func(repository.InspectionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&inspectionRepo{db: tx})
	})
}

// locked adds FOR UPDATE where the dialect supports row locks. SQLite runs a
// single writer connection, so the surrounding transaction already serializes.
func (r *inspectionRepo) locked(q *gorm.DB, forUpdate bool) *gorm.DB {
	if forUpdate && r.db.Dialector.Name() != "sqlite" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *inspectionRepo) FindField(ctx context.Context, id uint, forUpdate bool) (*entities.Field, error) {
	var f entities.Field
	q := r.locked(r.db.WithContext(ctx), forUpdate)
	if err := q.Where("field_id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *inspectionRepo) FindZone(ctx context.Context, id uint) (*entities.Zone, error) {
	var z entities.Zone
	if err := r.db.WithContext(ctx).Where("zone_id = ?", id).First(&z).Error; err != nil {
		return nil, err
	}
	return &z, nil
}

func (r *inspectionRepo) FindRound(ctx context.Context, id uint, forUpdate bool) (*entities.InspectionRound, error) {
	var rd entities.InspectionRound
	q := r.locked(r.db.WithContext(ctx), forUpdate)
	if err := q.Where("inspection_id = ?", id).First(&rd).Error; err != nil {
		return nil, err
	}
	return &rd, nil
}

func (r *inspectionRepo) FindOpenRound(ctx context.Context, fieldID, zoneID uint) (*entities.InspectionRound, error) {
	var rd entities.InspectionRound
	err := r.db.WithContext(ctx).
		Where("field_id = ? AND zone_id = ? AND status = ?", fieldID, zoneID, entities.RoundOpen).
		Order("inspection_id DESC").
		First(&rd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rd, nil
}

func (r *inspectionRepo) MaxRoundNo(ctx context.Context, fieldID, zoneID uint) (int, error) {
	var n int
	err := r.db.WithContext(ctx).Model(&entities.InspectionRound{}).
		Where("field_id = ? AND zone_id = ?", fieldID, zoneID).
		Select("COALESCE(MAX(round_no), 0)").
		Scan(&n).Error
	return n, err
}

func (r *inspectionRepo) CreateRound(ctx context.Context, rd *entities.InspectionRound) error {
	return r.db.WithContext(ctx).Create(rd).Error
}

func (r *inspectionRepo) SetRoundStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&entities.InspectionRound{}).
		Where("inspection_id = ?", id).
		Update("status", status).Error
}

func (r *inspectionRepo) ListRounds(ctx context.Context, uid string, f types.RoundFilter) ([]types.RoundSummary, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Table("inspection_rounds AS r").
			Joins("JOIN fields f ON f.field_id = r.field_id").
			Joins("LEFT JOIN zones z ON z.zone_id = r.zone_id").
			Where("f.user_id = ?", uid)
		if f.FieldID != 0 {
			q = q.Where("r.field_id = ?", f.FieldID)
		}
		if f.ZoneID != 0 {
			q = q.Where("r.zone_id = ?", f.ZoneID)
		}
		if !f.From.IsZero() {
			q = q.Where("r.inspected_at >= ?", f.From.UTC())
		}
		if !f.To.IsZero() {
			q = q.Where("r.inspected_at < ?", f.To.UTC())
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []types.RoundSummary
	err := base().Select(`r.inspection_id, r.field_id, r.zone_id, f.field_name, COALESCE(z.zone_name, '') AS zone_name,
		r.round_no, r.status, r.notes, r.inspected_at,
		(SELECT COUNT(*) FROM image_records i WHERE i.inspection_id = r.inspection_id) AS image_count,
		(SELECT COUNT(*) FROM findings fd WHERE fd.inspection_id = r.inspection_id) AS finding_count,
		(SELECT COUNT(*) FROM recommendations rc WHERE rc.inspection_id = r.inspection_id) AS recommendation_count`).
		Order("r.inspected_at DESC, r.inspection_id DESC").
		Limit(f.PageSize).
		Offset((f.Page - 1) * f.PageSize).
		Scan(&out).Error
	return out, total, err
}

func (r *inspectionRepo) ListHistoryRows(ctx context.Context, uid string, f types.HistoryFilter) ([]types.HistoryRow, error) {
	q := r.db.WithContext(ctx).Table("inspection_rounds AS r").
		Select("r.inspection_id, r.inspected_at, fd.nutrient_code").
		Joins("JOIN fields f ON f.field_id = r.field_id").
		Joins("LEFT JOIN findings fd ON fd.inspection_id = r.inspection_id").
		Where("f.user_id = ?", uid)
	if f.FieldID != 0 {
		q = q.Where("r.field_id = ?", f.FieldID)
	}
	if f.ZoneID != 0 {
		q = q.Where("r.zone_id = ?", f.ZoneID)
	}
	if !f.From.IsZero() {
		q = q.Where("r.inspected_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("r.inspected_at < ?", f.To.UTC())
	}
	var out []types.HistoryRow
	err := q.Order("r.inspected_at ASC, r.inspection_id ASC").Scan(&out).Error
	return out, err
}

func (r *inspectionRepo) CountImages(ctx context.Context, roundID uint) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.ImageRecord{}).
		Where("inspection_id = ?", roundID).
		Count(&n).Error
	return int(n), err
}

func (r *inspectionRepo) CreateImage(ctx context.Context, img *entities.ImageRecord) error {
	return r.db.WithContext(ctx).Create(img).Error
}

func (r *inspectionRepo) ListImages(ctx context.Context, roundID uint) ([]entities.ImageRecord, error) {
	var out []entities.ImageRecord
	err := r.db.WithContext(ctx).Where("inspection_id = ?", roundID).Order("image_id ASC").Find(&out).Error
	return out, err
}

func (r *inspectionRepo) ListFindings(ctx context.Context, roundID uint) ([]entities.Finding, error) {
	var out []entities.Finding
	err := r.db.WithContext(ctx).Where("inspection_id = ?", roundID).Order("finding_id ASC").Find(&out).Error
	return out, err
}

// ReplaceFindings swaps the round's finding set. Callers run it inside
// Transaction so readers never see the empty intermediate state.
func (r *inspectionRepo) ReplaceFindings(ctx context.Context, roundID uint, fs []entities.Finding) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("inspection_id = ?", roundID).Delete(&entities.Finding{}).Error; err != nil {
		return err
	}
	if len(fs) == 0 {
		return nil
	}
	for i := range fs {
		fs[i].FindingID = 0
		fs[i].InspectionID = roundID
	}
	return db.Create(&fs).Error
}

func (r *inspectionRepo) ValidNutrientCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&entities.NutrientDeficiency{}).Pluck("nutrient_code", &codes).Error
	return codes, err
}

func (r *inspectionRepo) ListFertilizers(ctx context.Context) ([]entities.Fertilizer, error) {
	var out []entities.Fertilizer
	err := r.db.WithContext(ctx).Order("fertilizer_id ASC").Find(&out).Error
	return out, err
}

func (r *inspectionRepo) FindRecommendation(ctx context.Context, roundID uint, code string) (*entities.Recommendation, error) {
	var rec entities.Recommendation
	err := r.db.WithContext(ctx).
		Where("inspection_id = ? AND nutrient_code = ?", roundID, code).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *inspectionRepo) CreateRecommendation(ctx context.Context, rec *entities.Recommendation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// UpdateRecommendation writes the derived content and status. applied_date
// is operator-owned and never written here.
func (r *inspectionRepo) UpdateRecommendation(ctx context.Context, rec *entities.Recommendation) error {
	return r.db.WithContext(ctx).Model(rec).
		Select("fertilizer_id", "recommendation_text", "rate_per_area", "application_method", "status").
		Updates(rec).Error
}

func (r *inspectionRepo) FindRecommendationByID(ctx context.Context, id uint) (*entities.Recommendation, error) {
	var rec entities.Recommendation
	if err := r.db.WithContext(ctx).Where("recommendation_id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *inspectionRepo) SetRecommendationStatus(ctx context.Context, id uint, status string, appliedDate *string) error {
	return r.db.WithContext(ctx).Model(&entities.Recommendation{}).
		Where("recommendation_id = ?", id).
		Updates(map[string]any{"status": status, "applied_date": appliedDate}).Error
}

func (r *inspectionRepo) ListRecommendationViews(ctx context.Context, roundID uint) ([]types.RecommendationView, error) {
	var out []types.RecommendationView
	err := r.db.WithContext(ctx).Table("recommendations AS rc").
		Select("rc.*, ft.fert_name, ft.formulation, nd.nutrient_name").
		Joins("LEFT JOIN fertilizers ft ON ft.fertilizer_id = rc.fertilizer_id").
		Joins("LEFT JOIN nutrient_deficiencies nd ON nd.nutrient_code = rc.nutrient_code").
		Where("rc.inspection_id = ?", roundID).
		Order("rc.recommendation_id ASC").
		Scan(&out).Error
	return out, err
}
