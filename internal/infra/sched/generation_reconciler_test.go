//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reklamai-generation/internal/usecase"
)

type countingSync struct {
	runs atomic.Int32
	err  error
}

func (c *countingSync) Run(ctx context.Context) (*usecase.SyncSummary, error) {
	c.runs.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &usecase.SyncSummary{}, nil
}

func TestGenerationReconciler_Start(t *testing.T) {
	logger := zerolog.Nop()
	uc := &countingSync{err: errors.New("db down")}
	w := NewGenerationReconciler(uc, 10*time.Millisecond, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop on context cancel")
	}
	if uc.runs.Load() < 2 {
		t.Fatalf("expected several ticks, got %d", uc.runs.Load())
	}
}

func TestNewGenerationReconciler_DefaultInterval(t *testing.T) {
	logger := zerolog.Nop()
	if w := NewGenerationReconciler(&countingSync{}, 0, &logger); w.interval != time.Minute {
		t.Fatalf("expected 1m default, got %v", w.interval)
	}
}
