package repository

import (
	"context"

	"reklamai-generation/internal/domain/model"
)

type ModelRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Model, error)
}
