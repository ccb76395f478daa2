package model

import "time"

type GenerationStatus string

const (
	GenerationStatusQueued     GenerationStatus = "queued"     // created, provider task may not exist yet
	GenerationStatusProcessing GenerationStatus = "processing" // provider is working on it
	GenerationStatusSucceeded  GenerationStatus = "succeeded"  // terminal, output available
	GenerationStatusFailed     GenerationStatus = "failed"     // terminal, credits refunded
)

// IsTerminal reports whether no further transitions are legal from s.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusSucceeded || s == GenerationStatusFailed
}

func (s GenerationStatus) rank() int {
	switch s {
	case GenerationStatusQueued:
		return 0
	case GenerationStatusProcessing:
		return 1
	case GenerationStatusSucceeded, GenerationStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo enforces queued -> processing -> (succeeded | failed).
// Staying in the same non-terminal state is allowed; a provider reporting
// "queued" for a processing generation is not a regression we persist.
func (s GenerationStatus) CanTransitionTo(next GenerationStatus) bool {
	if s.IsTerminal() || next.rank() < 0 {
		return false
	}
	return next.rank() >= s.rank()
}

// GenerationError is the structured failure detail persisted as JSONB.
type GenerationError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Raw     any    `json:"raw,omitempty"`
}

// Generation is one user request to produce an image, video or audio asset.
type Generation struct {
	ID               string           // UUID
	OwnerID          string           // UUID of the auth user
	ModelID          *string          // FK -> models
	PresetID         *string          // FK -> presets (optional)
	Prompt           string           //
	Status           GenerationStatus // see constants above
	ProviderTaskID   *string          // set once the create-task call succeeded upstream
	Progress         *int             // 0..100 when known
	OutputURL        *string          // provider URL of the result
	Error            *GenerationError //
	ReservedCredits  *float64         // reserved by the create flow
	EstimatedCredits *float64         // estimate shown to the user
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time // set on the terminal transition
}

// HasTask reports whether the provider task has been created.
func (g *Generation) HasTask() bool {
	return g.ProviderTaskID != nil && *g.ProviderTaskID != ""
}

// FinalCharge is the amount passed to finalize: reserved, else estimated, else zero.
func (g *Generation) FinalCharge() float64 {
	if g.ReservedCredits != nil && *g.ReservedCredits > 0 {
		return *g.ReservedCredits
	}
	if g.EstimatedCredits != nil && *g.EstimatedCredits > 0 {
		return *g.EstimatedCredits
	}
	return 0
}

// GenerationUpdate carries the fields a poll writes back onto the row.
type GenerationUpdate struct {
	Status    GenerationStatus
	Progress  *int
	OutputURL *string
	Error     *GenerationError
}
