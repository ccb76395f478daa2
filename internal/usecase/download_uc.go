package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/domain/ports/repository"
	"reklamai-generation/internal/infra/logging"
)

// Compile-time check
var _ DownloadUseCase = (*downloadUC)(nil)

// DownloadResult is a fetchable URL for a generation's output. ExpiresAt is nil
// when the URL is the provider's own.
type DownloadResult struct {
	URL       string
	ExpiresAt *time.Time
}

type DownloadUseCase interface {
	Download(ctx context.Context, caller Caller, generationID string) (*DownloadResult, error)
}

type downloadUC struct {
	generations repository.GenerationRepository
	models      repository.ModelRepository
	assets      repository.AssetRepository
	provider    adapter.ProviderClient
	fetcher     adapter.OutputFetcher
	storage     adapter.ObjectStorage // optional
	signedTTL   time.Duration
	log         *zerolog.Logger
}

func NewDownloadUseCase(
	generations repository.GenerationRepository,
	models repository.ModelRepository,
	assets repository.AssetRepository,
	provider adapter.ProviderClient,
	fetcher adapter.OutputFetcher,
	storage adapter.ObjectStorage,
	signedTTL time.Duration,
	logger *zerolog.Logger,
) *downloadUC {
	if signedTTL <= 0 {
		signedTTL = time.Hour
	}
	return &downloadUC{
		generations: generations,
		models:      models,
		assets:      assets,
		provider:    provider,
		fetcher:     fetcher,
		storage:     storage,
		signedTTL:   signedTTL,
		log:         logger,
	}
}

// Download returns the mirrored asset when there is one. Otherwise a succeeded
// generation is mirrored on demand from the provider's download URL.
func (u *downloadUC) Download(ctx context.Context, caller Caller, generationID string) (*DownloadResult, error) {
	defer logging.TraceDuration(u.log, "DownloadUC.Download")()

	g, err := loadGeneration(ctx, u.generations, caller, generationID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithGenerationID(ctx, g.ID)
	log := logging.With(ctx, u.log)

	if u.storage != nil {
		a, err := u.assets.FindOutput(ctx, repository.NoTX, g.ID)
		switch {
		case err == nil:
			return u.sign(ctx, a.StoragePath)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	if g.Status != model.GenerationStatusSucceeded || !g.HasTask() {
		return nil, domain.ErrOutputNotAvailable
	}

	url, err := u.provider.DownloadURL(ctx, *g.ProviderTaskID, modelFamily(ctx, u.models, g, u.log))
	if err != nil {
		if g.OutputURL == nil || *g.OutputURL == "" {
			log.Warn().Err(err).Msg("provider download url unavailable")
			return nil, fmt.Errorf("%w: %v", domain.ErrOutputNotAvailable, err)
		}
		url = *g.OutputURL
	}

	if u.storage == nil || u.fetcher == nil {
		return &DownloadResult{URL: url}, nil
	}

	asset, genErr := mirrorOutput(ctx, u.fetcher, u.storage, g, url)
	if genErr != nil {
		log.Warn().Str("reason", genErr.Message).Str("details", genErr.Details).Msg("on-demand mirroring failed, returning provider url")
		return &DownloadResult{URL: url}, nil
	}
	if err := u.assets.Save(ctx, repository.NoTX, asset); err != nil {
		return nil, fmt.Errorf("save output asset: %w", err)
	}
	return u.sign(ctx, asset.StoragePath)
}

func (u *downloadUC) sign(ctx context.Context, key string) (*DownloadResult, error) {
	signed, exp, err := u.storage.PresignGet(ctx, key, u.signedTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return &DownloadResult{URL: signed, ExpiresAt: &exp}, nil
}
