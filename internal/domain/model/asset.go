package model

import (
	"strings"
	"time"
)

type AssetKind string

const (
	AssetKindOutput AssetKind = "output"
	AssetKindInput  AssetKind = "input"
)

type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeVideo AssetType = "video"
	AssetTypeAudio AssetType = "audio"
	AssetTypeFile  AssetType = "file"
)

// Asset is a file mirrored into object storage.
type Asset struct {
	ID            string
	GenerationID  string
	OwnerID       string
	Kind          AssetKind
	Type          AssetType
	StorageBucket string
	StoragePath   string
	ProviderURL   *string
	Meta          map[string]any
	CreatedAt     time.Time
}

// AssetTypeFor maps a MIME content type to the asset type and file extension
// used for stored outputs.
func AssetTypeFor(contentType string) (AssetType, string) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "video"):
		return AssetTypeVideo, "mp4"
	case strings.Contains(ct, "image"):
		return AssetTypeImage, "png"
	case strings.Contains(ct, "audio"):
		return AssetTypeAudio, "mp3"
	default:
		return AssetTypeFile, "bin"
	}
}
