package model

type Modality string

const (
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
	ModalityEdit  Modality = "edit"
)

// ModelCapabilities is the capabilities JSONB bag of a model row.
type ModelCapabilities struct {
	Family          string `json:"family,omitempty"`           // provider endpoint family
	ModelIdentifier string `json:"model_identifier,omitempty"` // identifier sent upstream
}

// Model is an AI model offered in the catalog.
type Model struct {
	ID           string
	Key          string
	Modality     Modality
	Capabilities ModelCapabilities
}
