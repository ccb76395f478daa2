//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
)

func TestModelRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	repo := NewModelRepo(testPool)
	ctx := context.Background()

	id := seedModel(t, "flux-kontext-pro", "flux-kontext")
	m, err := repo.FindByID(ctx, nil, id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if m.Key != "flux-kontext-pro" || m.Capabilities.Family != "flux-kontext" {
		t.Errorf("unexpected model: %+v", m)
	}
	if _, err := repo.FindByID(ctx, nil, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	up := &model.Model{Key: "flux-kontext-pro", Modality: model.ModalityEdit, Capabilities: model.ModelCapabilities{Family: "market"}}
	if err := repo.Upsert(ctx, nil, up); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if up.ID != id {
		t.Errorf("upsert by key should keep the id, got %s want %s", up.ID, id)
	}
	m, _ = repo.FindByID(ctx, nil, id)
	if m.Capabilities.Family != "market" || m.Modality != model.ModalityEdit {
		t.Errorf("upsert did not refresh the row: %+v", m)
	}
}

func TestAssetRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	repo := NewAssetRepo(testPool)
	ctx := context.Background()
	owner := uuid.NewString()
	genID := seedGeneration(t, owner, "", "succeeded", "task-a", 0)

	if _, err := repo.FindOutput(ctx, nil, genID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}

	providerURL := "https://cdn/out.png"
	a := &model.Asset{
		GenerationID:  genID,
		OwnerID:       owner,
		Kind:          model.AssetKindOutput,
		Type:          model.AssetTypeImage,
		StorageBucket: "outputs",
		StoragePath:   owner + "/" + genID + "/result.png",
		ProviderURL:   &providerURL,
		Meta:          map[string]any{"contentType": "image/png", "size": 6},
	}
	if err := repo.Save(ctx, nil, a); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// a second mirror of the same output replaces the path
	again := *a
	again.ID = ""
	again.StoragePath = owner + "/" + genID + "/result.bin"
	if err := repo.Save(ctx, nil, &again); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := repo.FindOutput(ctx, nil, genID)
	if err != nil {
		t.Fatalf("FindOutput failed: %v", err)
	}
	if got.StoragePath != again.StoragePath || got.Meta["contentType"] != "image/png" {
		t.Errorf("unexpected asset: %+v", got)
	}
}

func TestCreditRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewCreditRepo(testPool)

	balance := func(t *testing.T, owner string) float64 {
		t.Helper()
		var b float64
		if err := testPool.QueryRow(ctx, `SELECT balance::float8 FROM credit_accounts WHERE owner_id=$1`, owner).Scan(&b); err != nil {
			t.Fatalf("read balance: %v", err)
		}
		return b
	}
	reserve := func(t *testing.T, owner, gen string, amount float64) {
		t.Helper()
		_, err := testPool.Exec(ctx, `INSERT INTO credit_accounts (owner_id, balance) VALUES ($1, 100 - $2::numeric)`, owner, amount)
		if err != nil {
			t.Fatalf("seed account: %v", err)
		}
		if _, err := testPool.Exec(ctx, `INSERT INTO credit_ledger (owner_id, generation_id, kind, amount) VALUES ($1, $2, 'reserve', $3)`, owner, gen, amount); err != nil {
			t.Fatalf("seed reservation: %v", err)
		}
	}

	t.Run("finalize is idempotent and returns the unused reservation", func(t *testing.T) {
		cleanup(t)
		owner := uuid.NewString()
		gen := seedGeneration(t, owner, "", "succeeded", "task-c1", 10)
		reserve(t, owner, gen, 10)

		meta := map[string]any{"settlement_ref": "01J0000000000000000000000"}
		if err := repo.Finalize(ctx, nil, owner, gen, 8, meta); err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}
		if err := repo.Finalize(ctx, nil, owner, gen, 8, meta); err != nil {
			t.Fatalf("second Finalize failed: %v", err)
		}
		if got := balance(t, owner); got != 92 {
			t.Errorf("expected balance 92, got %v", got)
		}

		var raw []byte
		_ = testPool.QueryRow(ctx, `SELECT meta FROM credit_ledger WHERE generation_id=$1 AND kind='finalize'`, gen).Scan(&raw)
		var stored map[string]any
		_ = json.Unmarshal(raw, &stored)
		if stored["settlement_ref"] != meta["settlement_ref"] {
			t.Errorf("meta not stored: %s", raw)
		}
	})

	t.Run("refund returns everything once", func(t *testing.T) {
		cleanup(t)
		owner := uuid.NewString()
		gen := seedGeneration(t, owner, "", "failed", "task-c2", 10)
		reserve(t, owner, gen, 10)

		if err := repo.Refund(ctx, nil, owner, gen, nil); err != nil {
			t.Fatalf("Refund failed: %v", err)
		}
		if err := repo.Refund(ctx, nil, owner, gen, nil); err != nil {
			t.Fatalf("second Refund failed: %v", err)
		}
		if got := balance(t, owner); got != 100 {
			t.Errorf("expected balance 100, got %v", got)
		}
	})

	t.Run("rpc errors wrap ErrSettlementFailed", func(t *testing.T) {
		cleanup(t)
		err := repo.Refund(ctx, nil, "not-a-uuid", uuid.NewString(), nil)
		if !errors.Is(err, domain.ErrSettlementFailed) {
			t.Fatalf("expected ErrSettlementFailed, got %v", err)
		}
	})
}

func TestProviderTaskRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	repo := NewProviderTaskRepo(testPool)
	ctx := context.Background()
	gen := seedGeneration(t, uuid.NewString(), "", "processing", "task-p", 0)

	first := &model.ProviderTask{GenerationID: gen, TaskID: "task-p", Status: model.GenerationStatusProcessing, Raw: json.RawMessage(`{"state":"generating"}`)}
	if err := repo.Upsert(ctx, nil, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	second := &model.ProviderTask{GenerationID: gen, TaskID: "task-p", Status: model.GenerationStatusSucceeded}
	if err := repo.Upsert(ctx, nil, second); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	var (
		count  int
		status string
	)
	if err := testPool.QueryRow(ctx, `SELECT COUNT(*), MAX(status) FROM provider_tasks WHERE task_id='task-p'`).Scan(&count, &status); err != nil {
		t.Fatalf("query provider_tasks: %v", err)
	}
	if count != 1 || status != "succeeded" {
		t.Errorf("expected one row in succeeded, got count=%d status=%s", count, status)
	}
}
