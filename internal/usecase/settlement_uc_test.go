//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v4"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/repository"
	"reklamai-generation/internal/usecase"
)

func newSettlement(gens *MockGenerationRepo, credits *MockCreditRepo) usecase.SettlementUseCase {
	return usecase.NewSettlementUseCase(gens, &MockAssetRepo{}, credits, NewMockProviderTaskRepo(),
		NewRollbackTxManager(gens), nil, nil, newTestLogger())
}

func TestSettlementUseCase_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		credits := &MockCreditRepo{}
		uc := newSettlement(NewMockGenerationRepo(), credits)

		res := uc.Finalize(ctx, ownerID, genID, 7.5, map[string]any{"source": "test"})
		if !res.Success || res.Error != "" {
			t.Fatalf("expected success, got %+v", res)
		}
		if len(credits.Calls) != 1 || credits.Calls[0].Amount != 7.5 {
			t.Fatalf("unexpected calls: %+v", credits.Calls)
		}
	})

	t.Run("rpc error is reported, not returned", func(t *testing.T) {
		credits := &MockCreditRepo{Err: errors.New("insufficient reserve")}
		uc := newSettlement(NewMockGenerationRepo(), credits)

		res := uc.Finalize(ctx, ownerID, genID, 7.5, nil)
		if res.Success || res.Error != "insufficient reserve" {
			t.Fatalf("expected failure result, got %+v", res)
		}
	})
}

func TestSettlementUseCase_Refund(t *testing.T) {
	ctx := context.Background()
	credits := &MockCreditRepo{}
	uc := newSettlement(NewMockGenerationRepo(), credits)

	res := uc.Refund(ctx, ownerID, genID, map[string]any{"provider_error": "boom"})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if credits.Count(model.SettlementRefund) != 1 {
		t.Fatalf("expected one refund, got %+v", credits.Calls)
	}
}

func TestSettlementUseCase_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal row is reported without writes", func(t *testing.T) {
		g := newGeneration(model.GenerationStatusFailed, "task-1")
		g.Error = &model.GenerationError{Message: "nope"}
		gens := NewMockGenerationRepo(g)
		credits := &MockCreditRepo{}

		out, err := newSettlement(gens, credits).Apply(ctx, g, &model.ProviderStatusResult{Status: model.GenerationStatusSucceeded}, usecase.SourceWebhook)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Status != model.GenerationStatusFailed || out.Error != "nope" || out.Settled {
			t.Fatalf("unexpected outcome: %+v", out)
		}
		if gens.AdvanceCalls != 0 || len(credits.Calls) != 0 {
			t.Fatal("terminal generation must not be written or settled")
		}
	})

	t.Run("lost race reports the winner's state", func(t *testing.T) {
		g := newGeneration(model.GenerationStatusProcessing, "task-1")
		gens := NewMockGenerationRepo(g)
		credits := &MockCreditRepo{}
		uc := newSettlement(gens, credits)

		// Another writer finished the generation after g was read.
		if _, err := gens.Advance(ctx, repository.NoTX, g.ID, model.GenerationUpdate{
			Status: model.GenerationStatusFailed,
			Error:  &model.GenerationError{Message: "timeout"},
		}); err != nil {
			t.Fatal(err)
		}

		out, err := uc.Apply(ctx, g, &model.ProviderStatusResult{Status: model.GenerationStatusSucceeded, OutputURL: "https://x/y.png"}, usecase.SourceStatus)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Status != model.GenerationStatusFailed || out.Settled {
			t.Fatalf("expected the stored failed state, got %+v", out)
		}
		if len(credits.Calls) != 0 {
			t.Fatal("the losing writer must not settle")
		}
	})

	t.Run("failure without message gets a default", func(t *testing.T) {
		g := newGeneration(model.GenerationStatusProcessing, "task-1")
		gens := NewMockGenerationRepo(g)
		credits := &MockCreditRepo{}

		out, err := newSettlement(gens, credits).Apply(ctx, g, &model.ProviderStatusResult{Status: model.GenerationStatusFailed}, usecase.SourceSync)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Error != "Generation failed" || !out.Settled {
			t.Fatalf("unexpected outcome: %+v", out)
		}
		if credits.Calls[0].Meta["source"] != usecase.SourceSync {
			t.Errorf("expected sync source in meta, got %v", credits.Calls[0].Meta)
		}
	})

	t.Run("estimate is charged when nothing was reserved", func(t *testing.T) {
		g := newGeneration(model.GenerationStatusProcessing, "task-1")
		g.ReservedCredits = nil
		g.EstimatedCredits = ptr(4.0)
		gens := NewMockGenerationRepo(g)
		credits := &MockCreditRepo{}

		if _, err := newSettlement(gens, credits).Apply(ctx, g, &model.ProviderStatusResult{Status: model.GenerationStatusSucceeded}, usecase.SourceStatus); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(credits.Calls) != 1 || credits.Calls[0].Amount != 4 {
			t.Fatalf("expected finalize of 4, got %+v", credits.Calls)
		}
	})

	t.Run("database failure is returned", func(t *testing.T) {
		g := newGeneration(model.GenerationStatusProcessing, "task-1")
		gens := NewMockGenerationRepo(g)
		credits := &MockCreditRepo{}
		uc := usecase.NewSettlementUseCase(gens, &MockAssetRepo{}, credits, NewMockProviderTaskRepo(),
			&MockTxManager{WithTxFunc: func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
				return domain.ErrOperationFailed
			}}, nil, nil, newTestLogger())

		_, err := uc.Apply(ctx, g, &model.ProviderStatusResult{Status: model.GenerationStatusSucceeded}, usecase.SourceStatus)
		if !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
	})
}

func TestSettlementUseCase_Apply_ReportsRPCResult(t *testing.T) {
	ctx := context.Background()
	g := newGeneration(model.GenerationStatusProcessing, "task-1")
	gens := NewMockGenerationRepo(g)
	credits := &MockCreditRepo{Err: errors.New("insufficient reserve")}

	out, err := newSettlement(gens, credits).Apply(ctx, g, &model.ProviderStatusResult{Status: model.GenerationStatusFailed, Error: "nsfw"}, usecase.SourceStatus)
	if err != nil {
		t.Fatalf("expected the RPC failure in the outcome, got error %v", err)
	}
	if out.Settled || out.SettlementError != "insufficient reserve" {
		t.Fatalf("expected the RPC result error, got %+v", out)
	}
	if out.Status != model.GenerationStatusFailed {
		t.Errorf("expected normalized status failed, got %s", out.Status)
	}
	if gens.Get(genID).Status != model.GenerationStatusProcessing {
		t.Error("refund failure must leave the generation open")
	}
	if credits.Count(model.SettlementRefund) != 1 {
		t.Fatalf("expected one refund attempt, got %+v", credits.Calls)
	}
}
