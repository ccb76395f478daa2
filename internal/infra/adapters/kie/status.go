package kie

import (
	"strings"

	"reklamai-generation/internal/domain/model"
)

// NormalizeStatus maps the provider's free-form state text onto the generation
// lifecycle. Matching is case-insensitive substring, first rule wins, and
// anything unrecognized is reported as processing so polling continues.
func NormalizeStatus(raw string) model.GenerationStatus {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "queue"), strings.Contains(s, "pending"):
		return model.GenerationStatusQueued
	case strings.Contains(s, "process"), strings.Contains(s, "generating"), strings.Contains(s, "running"):
		return model.GenerationStatusProcessing
	case strings.Contains(s, "succeed"), strings.Contains(s, "complete"), strings.Contains(s, "done"):
		return model.GenerationStatusSucceeded
	case strings.Contains(s, "fail"), strings.Contains(s, "error"):
		return model.GenerationStatusFailed
	default:
		return model.GenerationStatusProcessing
	}
}

// normalizeState is NormalizeStatus plus the market API's exact "success" token,
// which the substring rules would otherwise leave as processing.
func normalizeState(raw string) model.GenerationStatus {
	if strings.EqualFold(strings.TrimSpace(raw), "success") {
		return model.GenerationStatusSucceeded
	}
	return NormalizeStatus(raw)
}
