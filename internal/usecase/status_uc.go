package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/domain/ports/repository"
	"reklamai-generation/internal/infra/logging"
	"reklamai-generation/internal/infra/metrics"
)

// Compile-time check
var _ StatusUseCase = (*statusUC)(nil)

// Poll sources, used as log and metric labels.
const (
	SourceStatus  = "status"
	SourceWebhook = "webhook"
	SourceSync    = "sync"
)

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID      string
	ServiceRole bool // bypasses the owner filter
}

// PollResult is the caller-facing view of one generation after a poll.
type PollResult struct {
	Status          model.GenerationStatus
	Progress        *int
	PreviewURL      string
	Error           string
	SettlementError string
}

// ProviderUnavailableError carries the stored status so callers can still
// report it. It matches domain.ErrProviderUnavailable with errors.Is.
type ProviderUnavailableError struct {
	Stored model.GenerationStatus
	Err    error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("%v: %v", domain.ErrProviderUnavailable, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() []error {
	return []error{domain.ErrProviderUnavailable, e.Err}
}

type StatusUseCase interface {
	Poll(ctx context.Context, caller Caller, generationID, source string) (*PollResult, error)
}

// StatusConfig tunes the optional parts of polling.
type StatusConfig struct {
	LockTTL      time.Duration
	SignedURLTTL time.Duration
}

type statusUC struct {
	generations repository.GenerationRepository
	models      repository.ModelRepository
	assets      repository.AssetRepository
	provider    adapter.ProviderClient
	settlement  SettlementUseCase
	storage     adapter.ObjectStorage // optional
	locker      adapter.Locker        // optional
	cfg         StatusConfig
	log         *zerolog.Logger
}

func NewStatusUseCase(
	generations repository.GenerationRepository,
	models repository.ModelRepository,
	assets repository.AssetRepository,
	provider adapter.ProviderClient,
	settlement SettlementUseCase,
	storage adapter.ObjectStorage,
	locker adapter.Locker,
	cfg StatusConfig,
	logger *zerolog.Logger,
) *statusUC {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	return &statusUC{
		generations: generations,
		models:      models,
		assets:      assets,
		provider:    provider,
		settlement:  settlement,
		storage:     storage,
		locker:      locker,
		cfg:         cfg,
		log:         logger,
	}
}

func (u *statusUC) Poll(ctx context.Context, caller Caller, generationID, source string) (*PollResult, error) {
	defer logging.TraceDuration(u.log, "StatusUC.Poll")()
	start := time.Now()
	defer func() { metrics.ObservePoll(source, time.Since(start).Seconds()) }()

	g, err := loadGeneration(ctx, u.generations, caller, generationID)
	if err != nil {
		metrics.IncPoll(source, "rejected")
		return nil, err
	}
	ctx = logging.WithGenerationID(ctx, g.ID)
	log := logging.With(ctx, u.log)

	if !g.HasTask() {
		metrics.IncPoll(source, "no_task")
		return u.stored(ctx, g), nil
	}
	if g.Status.IsTerminal() {
		metrics.IncPoll(source, "terminal")
		return u.stored(ctx, g), nil
	}

	if u.locker != nil {
		key := pollLockKey(g.ID)
		token, err := u.locker.TryLock(ctx, key, u.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrPollInProgress):
			metrics.IncPoll(source, "locked")
			return u.stored(ctx, g), nil
		case err != nil:
			log.Warn().Err(err).Msg("poll lock unavailable, continuing without it")
		default:
			defer func() {
				if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn().Err(err).Msg("failed to release poll lock")
				}
			}()
		}
	}

	ctx = logging.WithTaskID(ctx, *g.ProviderTaskID)
	family := modelFamily(ctx, u.models, g, u.log)
	res, err := u.provider.Status(ctx, *g.ProviderTaskID, family)
	if err != nil {
		metrics.IncPoll(source, "provider_error")
		logging.With(ctx, u.log).Warn().Err(err).Str("family", family).Msg("provider status failed")
		return &PollResult{Status: g.Status, Progress: g.Progress}, &ProviderUnavailableError{Stored: g.Status, Err: err}
	}

	out, err := u.settlement.Apply(ctx, g, res, source)
	if err != nil {
		metrics.IncPoll(source, "error")
		return nil, err
	}
	metrics.IncPoll(source, string(out.Status))

	pr := &PollResult{
		Status:          out.Status,
		Progress:        out.Progress,
		Error:           out.Error,
		SettlementError: out.SettlementError,
	}
	if out.Status == model.GenerationStatusSucceeded {
		pr.PreviewURL = u.preview(ctx, g.ID, out.Asset, out.OutputURL)
	}
	return pr, nil
}

// stored reports g as persisted, without contacting the provider.
func (u *statusUC) stored(ctx context.Context, g *model.Generation) *PollResult {
	out := storedOutcome(g)
	pr := &PollResult{Status: out.Status, Progress: out.Progress, Error: out.Error}
	if pr.Progress == nil && g.Status == model.GenerationStatusProcessing {
		half := 50
		pr.Progress = &half
	}
	if g.Status == model.GenerationStatusSucceeded {
		pr.PreviewURL = u.preview(ctx, g.ID, nil, out.OutputURL)
	}
	return pr
}

// preview prefers a signed URL of the mirrored asset and falls back to the
// provider's output URL.
func (u *statusUC) preview(ctx context.Context, generationID string, asset *model.Asset, outputURL string) string {
	if u.storage == nil {
		return outputURL
	}
	if asset == nil {
		a, err := u.assets.FindOutput(ctx, repository.NoTX, generationID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logging.With(ctx, u.log).Warn().Err(err).Msg("failed to load output asset")
			}
			return outputURL
		}
		asset = a
	}
	signed, _, err := u.storage.PresignGet(ctx, asset.StoragePath, u.cfg.SignedURLTTL)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("failed to sign preview url")
		return outputURL
	}
	return signed
}

// modelFamily resolves the endpoint family from the model's capabilities. Any
// failure yields "" which the provider client treats as the market family.
func modelFamily(ctx context.Context, models repository.ModelRepository, g *model.Generation, log *zerolog.Logger) string {
	if g.ModelID == nil || *g.ModelID == "" {
		return ""
	}
	m, err := models.FindByID(ctx, repository.NoTX, *g.ModelID)
	if err != nil {
		logging.With(ctx, log).Warn().Err(err).Str("model_id", *g.ModelID).Msg("model lookup failed, using market endpoints")
		return ""
	}
	return m.Capabilities.Family
}

// loadGeneration validates the id before any I/O and applies the owner filter
// unless the caller is the service role.
func loadGeneration(ctx context.Context, generations repository.GenerationRepository, caller Caller, generationID string) (*model.Generation, error) {
	if _, err := uuid.Parse(generationID); err != nil {
		return nil, fmt.Errorf("%w: generationId must be a UUID", domain.ErrInvalidArgument)
	}
	if caller.ServiceRole {
		return generations.FindByID(ctx, repository.NoTX, generationID)
	}
	if caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	return generations.FindByIDForOwner(ctx, repository.NoTX, generationID, caller.UserID)
}

func pollLockKey(generationID string) string {
	return "lock:generation:" + generationID
}
