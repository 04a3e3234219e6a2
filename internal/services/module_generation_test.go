package services

import (
  "context"
  "errors"
  "testing"

  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

func TestGenerateModule_InitialBatch(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(4)
  studentID := uuid.New()
  ctx := context.Background()

  vmod, err := env.generator.GenerateModule(ctx, studentID, seed.module.ID, GenerateOptions{})
  if err != nil {
    t.Fatalf("GenerateModule: %v", err)
  }
  if vmod.GenerationStatus != types.GenerationStatusCompleted || vmod.GenerationProgress != 100 {
    t.Fatalf("expected completed@100, got %s@%d", vmod.GenerationStatus, vmod.GenerationProgress)
  }

  vtopics, err := env.topicsOf(vmod.ID)
  if err != nil {
    t.Fatalf("list topics: %v", err)
  }
  if len(vtopics) != 2 {
    t.Fatalf("expected initial batch of 2 topics, got %d", len(vtopics))
  }
  if vtopics[0].Status != types.TopicStatusActive || vtopics[0].Locked {
    t.Fatalf("expected first topic active, got %s locked=%v", vtopics[0].Status, vtopics[0].Locked)
  }
  if vtopics[1].Status != types.TopicStatusLocked || !vtopics[1].Locked {
    t.Fatalf("expected second topic locked, got %s", vtopics[1].Status)
  }
  if vtopics[0].TopicID != seed.topics[0].ID {
    t.Fatalf("expected topics virtualized in publication order")
  }

  contents := env.contentsOf(vtopics[0].ID)
  if len(contents) != 2 {
    t.Fatalf("expected 2 contents for the first topic, got %d", len(contents))
  }
  if contents[0].Order >= contents[1].Order {
    t.Fatalf("expected contents in ascending order")
  }
}

func TestGenerateModule_Idempotent(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(3)
  studentID := uuid.New()
  ctx := context.Background()

  first, err := env.generator.GenerateModule(ctx, studentID, seed.module.ID, GenerateOptions{})
  if err != nil {
    t.Fatalf("first generate: %v", err)
  }
  second, err := env.generator.GenerateModule(ctx, studentID, seed.module.ID, GenerateOptions{})
  if err != nil {
    t.Fatalf("second generate: %v", err)
  }
  if first.ID != second.ID {
    t.Fatalf("expected the same virtual module, got %s and %s", first.ID, second.ID)
  }
  vtopics, _ := env.topicsOf(first.ID)
  if len(vtopics) != 2 {
    t.Fatalf("expected topic count unchanged after repeat, got %d", len(vtopics))
  }
}

func TestGenerateModule_TwoStudentsGetSeparateModules(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(2)
  ctx := context.Background()

  a, err := env.generator.GenerateModule(ctx, uuid.New(), seed.module.ID, GenerateOptions{})
  if err != nil {
    t.Fatalf("generate a: %v", err)
  }
  b, err := env.generator.GenerateModule(ctx, uuid.New(), seed.module.ID, GenerateOptions{})
  if err != nil {
    t.Fatalf("generate b: %v", err)
  }
  if a.ID == b.ID {
    t.Fatalf("expected distinct virtual modules per student")
  }
}

func TestGenerateModule_MissingModule(t *testing.T) {
  env := newTestEnv(t)

  _, err := env.generator.GenerateModule(context.Background(), uuid.New(), uuid.New(), GenerateOptions{})
  if !errors.Is(err, apperr.ErrNotFound) {
    t.Fatalf("expected not-found error, got %v", err)
  }
}

func TestGenerateModule_NoPublishedTopicsStillCompletes(t *testing.T) {
  env := newTestEnv(t)
  mod := env.store.addModule("Sin temas")
  env.store.addTopic(mod.ID, "Borrador", false)

  vmod, err := env.generator.GenerateModule(context.Background(), uuid.New(), mod.ID, GenerateOptions{})
  if err != nil {
    t.Fatalf("GenerateModule: %v", err)
  }
  if vmod.GenerationStatus != types.GenerationStatusCompleted {
    t.Fatalf("expected completed, got %s", vmod.GenerationStatus)
  }
  vtopics, _ := env.topicsOf(vmod.ID)
  if len(vtopics) != 0 {
    t.Fatalf("expected no virtual topics, got %d", len(vtopics))
  }
}

func TestGenerateModule_CustomBatchSize(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(5)

  vmod, err := env.generator.GenerateModule(context.Background(), uuid.New(), seed.module.ID, GenerateOptions{InitialBatchSize: 4})
  if err != nil {
    t.Fatalf("GenerateModule: %v", err)
  }
  vtopics, _ := env.topicsOf(vmod.ID)
  if len(vtopics) != 4 {
    t.Fatalf("expected 4 topics, got %d", len(vtopics))
  }
}

func TestGenerateModule_EmptyProfileFallback(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(1)

  // No stored profile for this student at all.
  vmod, err := env.generator.GenerateModule(context.Background(), uuid.New(), seed.module.ID, GenerateOptions{})
  if err != nil {
    t.Fatalf("GenerateModule: %v", err)
  }
  vtopics, _ := env.topicsOf(vmod.ID)
  if len(vtopics) != 1 {
    t.Fatalf("expected generation to proceed with the empty profile")
  }
}
