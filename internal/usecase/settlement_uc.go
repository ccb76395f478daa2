package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/domain/ports/repository"
	"reklamai-generation/internal/infra/logging"
	"reklamai-generation/internal/infra/metrics"
)

// Compile-time check
var _ SettlementUseCase = (*settlementUC)(nil)

// SettlementUseCase owns every write that follows a provider observation.
type SettlementUseCase interface {
	// Finalize charges finalAmount for a succeeded generation.
	Finalize(ctx context.Context, ownerID, generationID string, finalAmount float64, meta map[string]any) model.SettlementResult
	// Refund releases the reservation of a failed generation.
	Refund(ctx context.Context, ownerID, generationID string, meta map[string]any) model.SettlementResult
	// Apply persists res onto g and settles credits on the first terminal transition.
	Apply(ctx context.Context, g *model.Generation, res *model.ProviderStatusResult, source string) (*ApplyOutcome, error)
}

// ApplyOutcome is what a caller reports after Apply. Status is the normalized
// status even when settlement failed and storage still holds the previous one.
type ApplyOutcome struct {
	Status          model.GenerationStatus
	Progress        *int
	OutputURL       string
	Error           string
	Asset           *model.Asset
	Settled         bool
	SettlementError string
}

type settlementUC struct {
	generations repository.GenerationRepository
	assets      repository.AssetRepository
	credits     repository.CreditRepository
	tasks       repository.ProviderTaskRepository
	tm          repository.TransactionManager
	fetcher     adapter.OutputFetcher
	storage     adapter.ObjectStorage // nil when mirroring is disabled
	log         *zerolog.Logger
}

func NewSettlementUseCase(
	generations repository.GenerationRepository,
	assets repository.AssetRepository,
	credits repository.CreditRepository,
	tasks repository.ProviderTaskRepository,
	tm repository.TransactionManager,
	fetcher adapter.OutputFetcher,
	storage adapter.ObjectStorage,
	logger *zerolog.Logger,
) *settlementUC {
	return &settlementUC{
		generations: generations,
		assets:      assets,
		credits:     credits,
		tasks:       tasks,
		tm:          tm,
		fetcher:     fetcher,
		storage:     storage,
		log:         logger,
	}
}

func (u *settlementUC) Finalize(ctx context.Context, ownerID, generationID string, finalAmount float64, meta map[string]any) model.SettlementResult {
	defer logging.TraceDuration(u.log, "SettlementUC.Finalize")()
	return u.finalize(ctx, repository.NoTX, ownerID, generationID, finalAmount, meta)
}

func (u *settlementUC) Refund(ctx context.Context, ownerID, generationID string, meta map[string]any) model.SettlementResult {
	defer logging.TraceDuration(u.log, "SettlementUC.Refund")()
	return u.refund(ctx, repository.NoTX, ownerID, generationID, meta)
}

// finalize and refund run the RPC on tx, so Apply can settle inside its transaction.
func (u *settlementUC) finalize(ctx context.Context, tx repository.Tx, ownerID, generationID string, finalAmount float64, meta map[string]any) model.SettlementResult {
	err := u.credits.Finalize(ctx, tx, ownerID, generationID, finalAmount, meta)
	return u.result(ctx, model.SettlementFinalize, ownerID, generationID, err)
}

func (u *settlementUC) refund(ctx context.Context, tx repository.Tx, ownerID, generationID string, meta map[string]any) model.SettlementResult {
	err := u.credits.Refund(ctx, tx, ownerID, generationID, meta)
	return u.result(ctx, model.SettlementRefund, ownerID, generationID, err)
}

func (u *settlementUC) result(ctx context.Context, action model.SettlementAction, ownerID, generationID string, err error) model.SettlementResult {
	if err != nil {
		metrics.IncSettlement(string(action), "error")
		logging.With(ctx, u.log).Error().Err(err).
			Str("action", string(action)).
			Str("owner_id", ownerID).
			Str("generation_id", generationID).
			Msg("credit settlement failed")
		return model.SettlementResult{Success: false, Error: err.Error()}
	}
	metrics.IncSettlement(string(action), "ok")
	return model.SettlementResult{Success: true}
}

func (u *settlementUC) Apply(ctx context.Context, g *model.Generation, res *model.ProviderStatusResult, source string) (*ApplyOutcome, error) {
	defer logging.TraceDuration(u.log, "SettlementUC.Apply")()
	ctx = logging.WithGenerationID(ctx, g.ID)
	log := logging.With(ctx, u.log)

	u.recordTask(ctx, g, res)

	// Storage already holds a terminal state: report it, never settle again.
	if g.Status.IsTerminal() {
		return storedOutcome(g), nil
	}

	next := res.Status
	if !g.Status.CanTransitionTo(next) {
		next = g.Status
	}

	if !next.IsTerminal() {
		upd := model.GenerationUpdate{Status: next, Progress: res.Progress}
		if res.OutputURL != "" {
			upd.OutputURL = &res.OutputURL
		}
		ok, err := u.generations.Advance(ctx, repository.NoTX, g.ID, upd)
		if err != nil {
			return nil, fmt.Errorf("persist %s status: %w", next, err)
		}
		if !ok {
			return u.reload(ctx, g)
		}
		return &ApplyOutcome{Status: next, Progress: res.Progress, OutputURL: res.OutputURL}, nil
	}

	out := &ApplyOutcome{Status: next, Progress: res.Progress, OutputURL: res.OutputURL}
	upd := model.GenerationUpdate{Status: next, Progress: res.Progress}
	if res.OutputURL != "" {
		upd.OutputURL = &res.OutputURL
	}

	action := model.SettlementFinalize
	meta := map[string]any{
		"source":         source,
		"settlement_ref": ulid.Make().String(),
	}
	if g.ModelID != nil {
		meta["model_id"] = *g.ModelID
	}
	if g.PresetID != nil {
		meta["preset_id"] = *g.PresetID
	}

	switch next {
	case model.GenerationStatusSucceeded:
		full := 100
		upd.Progress, out.Progress = &full, &full
		if res.OutputURL != "" {
			asset, mirrorErr := u.mirror(ctx, g, res.OutputURL)
			out.Asset = asset
			if mirrorErr != nil {
				upd.Error = mirrorErr
				out.Error = mirrorErr.Message
			}
		}
	case model.GenerationStatusFailed:
		action = model.SettlementRefund
		msg := res.Error
		if msg == "" {
			msg = "Generation failed"
		}
		upd.Error = &model.GenerationError{Message: msg}
		if len(res.Raw) > 0 {
			upd.Error.Raw = res.Raw
		}
		out.Error = msg
		meta["provider_error"] = msg
	}

	won := false
	var settled model.SettlementResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.generations.Advance(ctx, tx, g.ID, upd)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		won = true
		if out.Asset != nil {
			if err := u.assets.Save(ctx, tx, out.Asset); err != nil {
				return fmt.Errorf("save output asset: %w", err)
			}
		}
		if action == model.SettlementFinalize {
			settled = u.finalize(ctx, tx, g.OwnerID, g.ID, g.FinalCharge(), meta)
		} else {
			settled = u.refund(ctx, tx, g.OwnerID, g.ID, meta)
		}
		if !settled.Success {
			return fmt.Errorf("%w: %s", domain.ErrSettlementFailed, settled.Error)
		}
		return nil
	})

	switch {
	case won && !settled.Success && errors.Is(err, domain.ErrSettlementFailed):
		// The transaction rolled back, so the row is still open and the next
		// poll or the reconciler retries the whole transition.
		log.Warn().Str("action", string(action)).Str("source", source).Msg("generation left open for retry")
		out.SettlementError = settled.Error
		return out, nil
	case err != nil:
		return nil, fmt.Errorf("settle generation: %w", err)
	case !won:
		metrics.IncSettlement(string(action), "skipped")
		log.Info().Str("action", string(action)).Msg("generation already settled elsewhere")
		return u.reload(ctx, g)
	}

	out.Settled = true
	log.Info().
		Str("action", string(action)).
		Str("status", string(next)).
		Float64("amount", g.FinalCharge()).
		Str("settlement_ref", meta["settlement_ref"].(string)).
		Msg("generation settled")
	return out, nil
}

// mirror copies the provider output into object storage. The returned asset is
// saved by the caller inside the settlement transaction.
func (u *settlementUC) mirror(ctx context.Context, g *model.Generation, outputURL string) (*model.Asset, *model.GenerationError) {
	if u.storage == nil || u.fetcher == nil {
		return nil, nil
	}
	asset, genErr := mirrorOutput(ctx, u.fetcher, u.storage, g, outputURL)
	if genErr != nil {
		logging.With(ctx, u.log).Warn().Str("reason", genErr.Message).Str("details", genErr.Details).Msg("output mirroring failed")
	}
	return asset, genErr
}

func (u *settlementUC) recordTask(ctx context.Context, g *model.Generation, res *model.ProviderStatusResult) {
	if !g.HasTask() {
		return
	}
	t := &model.ProviderTask{
		GenerationID: g.ID,
		TaskID:       *g.ProviderTaskID,
		Status:       res.Status,
		Raw:          res.Raw,
	}
	if err := u.tasks.Upsert(ctx, repository.NoTX, t); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("failed to record provider task")
	}
}

func (u *settlementUC) reload(ctx context.Context, g *model.Generation) (*ApplyOutcome, error) {
	cur, err := u.generations.FindByID(ctx, repository.NoTX, g.ID)
	if err != nil {
		return nil, err
	}
	return storedOutcome(cur), nil
}

func storedOutcome(g *model.Generation) *ApplyOutcome {
	out := &ApplyOutcome{Status: g.Status, Progress: g.Progress}
	if g.OutputURL != nil {
		out.OutputURL = *g.OutputURL
	}
	if g.Error != nil {
		out.Error = g.Error.Message
	}
	return out
}
