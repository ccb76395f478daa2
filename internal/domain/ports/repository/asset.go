package repository

import (
	"context"

	"reklamai-generation/internal/domain/model"
)

type AssetRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Asset) error
	// FindOutput returns the stored output asset of a generation.
	FindOutput(ctx context.Context, tx Tx, generationID string) (*model.Asset, error)
}
