package repository

import (
	"context"

	"cropcheck/entities"
)

type FieldRepository interface {
	Create(ctx context.Context, f *entities.Field) error
	FindByID(ctx context.Context, id uint) (*entities.Field, error)
	ListByUser(ctx context.Context, uid string) ([]entities.Field, error)

	CreateZone(ctx context.Context, z *entities.Zone) error
	ListZones(ctx context.Context, fieldID uint) ([]entities.Zone, error)
}
