package service

import (
	"context"

	"cropcheck/entities"
)

type FieldService interface {
	CreateField(ctx context.Context, uid string, f *entities.Field) (*entities.Field, error)
	GetField(ctx context.Context, uid string, id uint) (*entities.Field, error)
	ListFields(ctx context.Context, uid string) ([]entities.Field, error)
	CreateZone(ctx context.Context, uid string, fieldID uint, z *entities.Zone) (*entities.Zone, error)
	ListZones(ctx context.Context, uid string, fieldID uint) ([]entities.Zone, error)
}
