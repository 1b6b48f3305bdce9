package serviceImp

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"cropcheck/entities"
	"cropcheck/pkg/apperr"
	repo "cropcheck/pkg/field/repository"
	"cropcheck/pkg/field/service"
)

type fieldSvc struct{ r repo.FieldRepository }

func NewFieldService(r repo.FieldRepository) service.FieldService { return &fieldSvc{r} }

func (s *fieldSvc) CreateField(ctx context.Context, uid string, f *entities.Field) (*entities.Field, error) {
	f.FieldName = strings.TrimSpace(f.FieldName)
	if f.FieldName == "" {
		return nil, apperr.New(apperr.KindBadRequest, "field_name is required")
	}
	f.FieldID = 0
	f.UserID = uid
	if err := s.r.Create(ctx, f); err != nil {
		return nil, apperr.Store(err)
	}
	return f, nil
}

// GetField loads a field and checks that uid owns it.
func (s *fieldSvc) GetField(ctx context.Context, uid string, id uint) (*entities.Field, error) {
	f, err := s.r.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "field %d not found", id)
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	if f.UserID != uid {
		return nil, apperr.New(apperr.KindForbidden, "field %d belongs to another user", id)
	}
	return f, nil
}

func (s *fieldSvc) ListFields(ctx context.Context, uid string) ([]entities.Field, error) {
	out, err := s.r.ListByUser(ctx, uid)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return out, nil
}

func (s *fieldSvc) CreateZone(ctx context.Context, uid string, fieldID uint, z *entities.Zone) (*entities.Zone, error) {
	if _, err := s.GetField(ctx, uid, fieldID); err != nil {
		return nil, err
	}
	z.ZoneName = strings.TrimSpace(z.ZoneName)
	if z.ZoneName == "" {
		return nil, apperr.New(apperr.KindBadRequest, "zone_name is required")
	}
	if z.NumTrees < 0 {
		return nil, apperr.New(apperr.KindBadRequest, "num_trees must not be negative")
	}
	z.ZoneID = 0
	z.FieldID = fieldID
	if err := s.r.CreateZone(ctx, z); err != nil {
		return nil, apperr.Store(err)
	}
	return z, nil
}

func (s *fieldSvc) ListZones(ctx context.Context, uid string, fieldID uint) ([]entities.Zone, error) {
	if _, err := s.GetField(ctx, uid, fieldID); err != nil {
		return nil, err
	}
	out, err := s.r.ListZones(ctx, fieldID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return out, nil
}
