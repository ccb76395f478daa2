package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"reklamai-generation/internal/config"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/infra/adapters/kie"
	pg "reklamai-generation/internal/infra/db/postgres"
)

// One catalog entry per endpoint family so every provider path can be exercised
// against a local database.
var seed = []struct {
	Key        string
	Modality   model.Modality
	Family     kie.Family
	Identifier string
}{
	{"nano-banana", model.ModalityImage, kie.FamilyMarket, "google/nano-banana"},
	{"veo3-fast", model.ModalityVideo, kie.FamilyVeo3, "veo3_fast"},
	{"gpt-4o-image", model.ModalityImage, kie.Family4oImage, "gpt-4o-image"},
	{"runway-gen3", model.ModalityVideo, kie.FamilyRunway, "runway-duration-5-generate"},
	{"luma-modify", model.ModalityVideo, kie.FamilyLuma, "luma-modify"},
	{"flux-kontext-pro", model.ModalityEdit, kie.FamilyFluxKontext, "flux-kontext-pro"},
	{"suno-v4", model.ModalityAudio, kie.FamilySuno, "V4"},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	repo := pg.NewModelRepo(pool)
	for _, s := range seed {
		m := &model.Model{
			Key:      s.Key,
			Modality: s.Modality,
			Capabilities: model.ModelCapabilities{
				Family:          string(s.Family),
				ModelIdentifier: s.Identifier,
			},
		}
		if err := repo.Upsert(ctx, nil, m); err != nil {
			log.Fatalf("seed model %q: %v", s.Key, err)
		}
		ep := kie.EndpointsFor(string(s.Family))
		fmt.Printf("seeded: %-18s id=%s family=%s status=%s\n", m.Key, m.ID, s.Family, ep.StatusPath)
	}
	fmt.Println("Seeding complete.")
}
