package adapter

import (
	"context"

	"reklamai-generation/internal/domain/model"
)

// ProviderClient is the port for the upstream generation API.
type ProviderClient interface {
	// Status fetches and normalizes the state of one task. Transport failures and
	// non-2xx answers are errors; an unrecognized state is not.
	Status(ctx context.Context, taskID, family string) (*model.ProviderStatusResult, error)
	// DownloadURL resolves a fetchable URL for a finished task's output.
	DownloadURL(ctx context.Context, taskID, family string) (string, error)
}

// OutputFetcher downloads a finished output so it can be mirrored.
type OutputFetcher interface {
	Fetch(ctx context.Context, url string) (body []byte, contentType string, err error)
}
