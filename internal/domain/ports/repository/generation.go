package repository

import (
	"context"
	"time"

	"reklamai-generation/internal/domain/model"
)

type GenerationRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Generation, error)
	// FindByIDForOwner returns ErrNotFound when the row exists but belongs to someone else.
	FindByIDForOwner(ctx context.Context, tx Tx, id, ownerID string) (*model.Generation, error)
	FindByTaskID(ctx context.Context, tx Tx, taskID string) (*model.Generation, error)
	// Advance writes upd only while the stored status is non-terminal. It reports
	// whether a row changed; false means another writer already reached a terminal state.
	Advance(ctx context.Context, tx Tx, id string, upd model.GenerationUpdate) (bool, error)
	// ListStale returns queued/processing generations created before olderThan, oldest first.
	ListStale(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Generation, error)
}
