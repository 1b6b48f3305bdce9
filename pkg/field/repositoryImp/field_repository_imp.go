package repositoryImp

import (
	"context"

	"gorm.io/gorm"

	"cropcheck/entities"
	"cropcheck/pkg/field/repository"
)

type fieldRepo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.FieldRepository { return &fieldRepo{db} }

func (r *fieldRepo) Create(ctx context.Context, f *entities.Field) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *fieldRepo) FindByID(ctx context.Context, id uint) (*entities.Field, error) {
	var f entities.Field
	if err := r.db.WithContext(ctx).Where("field_id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fieldRepo) ListByUser(ctx context.Context, uid string) ([]entities.Field, error) {
	var out []entities.Field
	err := r.db.WithContext(ctx).Where("user_id = ?", uid).Order("field_id ASC").Find(&out).Error
	return out, err
}

func (r *fieldRepo) CreateZone(ctx context.Context, z *entities.Zone) error {
	return r.db.WithContext(ctx).Create(z).Error
}

func (r *fieldRepo) ListZones(ctx context.Context, fieldID uint) ([]entities.Zone, error) {
	var out []entities.Zone
	err := r.db.WithContext(ctx).Where("field_id = ?", fieldID).Order("zone_id ASC").Find(&out).Error
	return out, err
}
