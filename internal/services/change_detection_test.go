package services

import (
  "testing"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/yachay-edu/yachay-backend/internal/types"
)

func fingerprintFixture() (*types.Module, []*types.Topic, []*types.Evaluation) {
  mod := &types.Module{
    ID:               uuid.New(),
    Name:             "Fracciones",
    LearningOutcomes: datatypes.JSON([]byte(`["suma de fracciones"]`)),
  }
  topics := []*types.Topic{
    {ID: uuid.New(), ModuleID: mod.ID, Name: "Introducción", Difficulty: types.TopicDifficultyEasy, TheoryContent: "a/b"},
    {ID: uuid.New(), ModuleID: mod.ID, Name: "Suma", Difficulty: types.TopicDifficultyMedium, TheoryContent: "a/b + c/d"},
  }
  evals := []*types.Evaluation{
    {ID: uuid.New(), ModuleID: mod.ID, Title: "Examen final", Weight: 0.6},
  }
  return mod, topics, evals
}

func TestFingerprintModule_StableAcrossInputOrder(t *testing.T) {
  mod, topics, evals := fingerprintFixture()

  h1, err := FingerprintModule(mod, topics, evals)
  if err != nil {
    t.Fatalf("fingerprint: %v", err)
  }
  reversed := []*types.Topic{topics[1], topics[0]}
  h2, err := FingerprintModule(mod, reversed, evals)
  if err != nil {
    t.Fatalf("fingerprint: %v", err)
  }
  if h1 != h2 {
    t.Fatalf("fingerprint changed with topic input order: %s vs %s", h1, h2)
  }
}

func TestFingerprintModule_SensitiveToContentEdits(t *testing.T) {
  mod, topics, evals := fingerprintFixture()

  before, err := FingerprintModule(mod, topics, evals)
  if err != nil {
    t.Fatalf("fingerprint: %v", err)
  }

  topics[0].TheoryContent = "a/b edited"
  after, err := FingerprintModule(mod, topics, evals)
  if err != nil {
    t.Fatalf("fingerprint: %v", err)
  }
  if before == after {
    t.Fatalf("fingerprint did not change after theory edit")
  }

  topics[0].TheoryContent = "a/b"
  restored, err := FingerprintModule(mod, topics, evals)
  if err != nil {
    t.Fatalf("fingerprint: %v", err)
  }
  if restored != before {
    t.Fatalf("fingerprint not stable after restoring content")
  }
}

func TestFingerprintModule_SensitiveToEvaluationWeight(t *testing.T) {
  mod, topics, evals := fingerprintFixture()

  before, err := FingerprintModule(mod, topics, evals)
  if err != nil {
    t.Fatalf("fingerprint: %v", err)
  }
  evals[0].Weight = 0.8
  after, err := FingerprintModule(mod, topics, evals)
  if err != nil {
    t.Fatalf("fingerprint: %v", err)
  }
  if before == after {
    t.Fatalf("fingerprint did not change after evaluation weight edit")
  }
}

func TestFingerprintModule_EmptyModule(t *testing.T) {
  mod := &types.Module{ID: uuid.New(), Name: "Vacío"}
  h, err := FingerprintModule(mod, nil, nil)
  if err != nil {
    t.Fatalf("fingerprint: %v", err)
  }
  if h == "" {
    t.Fatalf("expected a hash for an empty module")
  }
}
