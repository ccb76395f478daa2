package repository

import (
	"context"

	"reklamai-generation/internal/domain/model"
)

type ProviderTaskRepository interface {
	Upsert(ctx context.Context, tx Tx, t *model.ProviderTask) error
}
