package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/domain/ports/repository"
	"reklamai-generation/internal/infra/logging"
	"reklamai-generation/internal/infra/metrics"
)

// Compile-time check
var _ SyncUseCase = (*syncUC)(nil)

// SyncSummary reports one reconciliation pass.
type SyncSummary struct {
	Found     int           `json:"found"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"-"`
}

// SyncUseCase re-polls generations that stayed open longer than expected, so
// outputs and settlements land even when nobody is watching the generation.
type SyncUseCase interface {
	Run(ctx context.Context) (*SyncSummary, error)
}

type syncUC struct {
	generations repository.GenerationRepository
	status      StatusUseCase
	runner      adapter.TaskRunner
	staleAfter  time.Duration
	batch       int
	log         *zerolog.Logger
}

func NewSyncUseCase(generations repository.GenerationRepository, status StatusUseCase, runner adapter.TaskRunner, staleAfter time.Duration, batch int, logger *zerolog.Logger) *syncUC {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	return &syncUC{
		generations: generations,
		status:      status,
		runner:      runner,
		staleAfter:  staleAfter,
		batch:       batch,
		log:         logger,
	}
}

func (u *syncUC) Run(ctx context.Context) (*SyncSummary, error) {
	defer logging.TraceDuration(u.log, "SyncUC.Run")()
	start := time.Now()

	stale, err := u.generations.ListStale(ctx, repository.NoTX, start.Add(-u.staleAfter), u.batch)
	if err != nil {
		metrics.IncReconcilerRun("error")
		return nil, err
	}

	sum := &SyncSummary{Found: len(stale)}
	if len(stale) == 0 {
		metrics.IncReconcilerRun("ok")
		sum.Duration = time.Since(start)
		return sum, nil
	}

	service := Caller{ServiceRole: true}
	tasks := make([]func(ctx context.Context) error, 0, len(stale))
	for _, g := range stale {
		id := g.ID
		tasks = append(tasks, func(ctx context.Context) error {
			_, err := u.status.Poll(ctx, service, id, SourceSync)
			return err
		})
	}

	for i, err := range u.runner.RunAll(ctx, tasks) {
		if err != nil {
			sum.Failed++
			logging.With(logging.WithGenerationID(ctx, stale[i].ID), u.log).Warn().Err(err).Msg("sync poll failed")
			continue
		}
		sum.Processed++
	}
	sum.Duration = time.Since(start)

	metrics.IncReconcilerRun("ok")
	metrics.AddReconciled(sum.Processed, sum.Failed)
	u.log.Info().
		Int("found", sum.Found).
		Int("processed", sum.Processed).
		Int("failed", sum.Failed).
		Dur("duration", sum.Duration).
		Msg("generation sync finished")
	return sum, nil
}
