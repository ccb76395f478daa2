package model

import (
	"encoding/json"
	"time"
)

// ProviderStatusResult is one normalized provider observation. It is not persisted
// beyond the generation row and the provider_tasks audit row.
type ProviderStatusResult struct {
	Status    GenerationStatus
	Progress  *int
	OutputURL string
	Error     string
	Raw       json.RawMessage
}

// ProviderTask is the audit trail of the last provider observation for a task.
type ProviderTask struct {
	GenerationID string
	TaskID       string
	Status       GenerationStatus
	Raw          json.RawMessage
	UpdatedAt    time.Time
}
