package usecase

import (
	"context"
	"path"

	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/infra/metrics"
)

const (
	errOutputDownload = "Output download failed"
	errOutputUpload   = "Output upload failed"
)

// outputKey is "{owner}/{generation}/result.{ext}".
func outputKey(ownerID, generationID, ext string) string {
	return path.Join(ownerID, generationID, "result."+ext)
}

// mirrorOutput downloads outputURL and stores it under the generation's output key.
// A failure is returned as the error detail to persist; it never blocks success.
func mirrorOutput(ctx context.Context, fetcher adapter.OutputFetcher, storage adapter.ObjectStorage, g *model.Generation, outputURL string) (*model.Asset, *model.GenerationError) {
	body, contentType, err := fetcher.Fetch(ctx, outputURL)
	if err != nil {
		metrics.IncOutputMirror("download_error")
		return nil, &model.GenerationError{Message: errOutputDownload, Details: err.Error()}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	assetType, ext := model.AssetTypeFor(contentType)
	key := outputKey(g.OwnerID, g.ID, ext)
	if err := storage.Put(ctx, key, body, contentType); err != nil {
		metrics.IncOutputMirror("upload_error")
		return nil, &model.GenerationError{Message: errOutputUpload, Details: err.Error()}
	}
	metrics.IncOutputMirror("ok")

	providerURL := outputURL
	return &model.Asset{
		GenerationID:  g.ID,
		OwnerID:       g.OwnerID,
		Kind:          model.AssetKindOutput,
		Type:          assetType,
		StorageBucket: storage.Bucket(),
		StoragePath:   key,
		ProviderURL:   &providerURL,
		Meta: map[string]any{
			"contentType": contentType,
			"size":        len(body),
		},
	}, nil
}
