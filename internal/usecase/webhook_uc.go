package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/repository"
	"reklamai-generation/internal/infra/logging"
	"reklamai-generation/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookResult struct {
	TaskID string
	Status model.GenerationStatus
	Error  string
}

// WebhookUseCase reacts to provider callbacks. The callback body is unauthenticated,
// so it only names the task: the state is re-read from the provider by a poll.
type WebhookUseCase interface {
	Handle(ctx context.Context, taskID string) (*WebhookResult, error)
}

type webhookUC struct {
	generations repository.GenerationRepository
	status      StatusUseCase
	log         *zerolog.Logger
}

func NewWebhookUseCase(generations repository.GenerationRepository, status StatusUseCase, logger *zerolog.Logger) *webhookUC {
	return &webhookUC{generations: generations, status: status, log: logger}
}

func (u *webhookUC) Handle(ctx context.Context, taskID string) (*WebhookResult, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.Handle")()
	if taskID == "" {
		return nil, fmt.Errorf("%w: taskId is required", domain.ErrInvalidArgument)
	}
	ctx = logging.WithTaskID(ctx, taskID)

	g, err := u.generations.FindByTaskID(ctx, repository.NoTX, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncPoll(SourceWebhook, "unknown_task")
			logging.With(ctx, u.log).Warn().Msg("callback for unknown task")
		}
		return nil, err
	}

	res, err := u.status.Poll(ctx, Caller{ServiceRole: true}, g.ID, SourceWebhook)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{TaskID: taskID, Status: res.Status, Error: res.Error}, nil
}
