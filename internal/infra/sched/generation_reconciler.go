package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"reklamai-generation/internal/usecase"
)

// GenerationReconciler periodically re-polls generations that stayed open, so
// outputs and credit settlements land even when the client stopped polling or
// a settlement RPC failed earlier.
type GenerationReconciler struct {
	uc       usecase.SyncUseCase
	interval time.Duration
	log      *zerolog.Logger
}

func NewGenerationReconciler(uc usecase.SyncUseCase, interval time.Duration, logger *zerolog.Logger) *GenerationReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &GenerationReconciler{uc: uc, interval: interval, log: logger}
}

// Start blocks until ctx is done.
func (w *GenerationReconciler) Start(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *GenerationReconciler) tick(ctx context.Context) {
	if _, err := w.uc.Run(ctx); err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("generation reconciler: sync failed")
	}
}
