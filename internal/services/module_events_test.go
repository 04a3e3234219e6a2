package services

import (
  "context"
  "testing"

  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/types"
)

func TestDetectChanges_BaselineThenEdit(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(2)
  ctx := context.Background()

  first := env.detector.DetectChanges(ctx, nil, seed.module.ID)
  if !first.IsInitial || first.HasChanges {
    t.Fatalf("first observation must record the baseline, got %+v", first)
  }
  if first.Hash == "" {
    t.Fatalf("expected fingerprint hash")
  }

  second := env.detector.DetectChanges(ctx, nil, seed.module.ID)
  if second.IsInitial || second.HasChanges {
    t.Fatalf("unchanged content must report no changes, got %+v", second)
  }
  if second.Hash != first.Hash {
    t.Fatalf("fingerprint drifted without edits")
  }

  env.store.topics[seed.topics[0].ID].TheoryContent = "Contenido revisado"
  third := env.detector.DetectChanges(ctx, nil, seed.module.ID)
  if !third.HasChanges {
    t.Fatalf("expected edit to be detected")
  }
  if third.Hash == first.Hash {
    t.Fatalf("expected a new fingerprint after the edit")
  }

  if len(env.store.versions) != 2 {
    t.Fatalf("expected baseline plus change version rows, got %d", len(env.store.versions))
  }
  if env.store.versions[0].ChangeMarker != "initial" || env.store.versions[1].ChangeMarker != "content_changed" {
    t.Fatalf("unexpected version markers %q %q",
      env.store.versions[0].ChangeMarker, env.store.versions[1].ChangeMarker)
  }
}

func TestDetectChanges_MissingModuleDegrades(t *testing.T) {
  env := newTestEnv(t)

  report := env.detector.DetectChanges(context.Background(), nil, uuid.New())
  if report.HasChanges {
    t.Fatalf("missing module must not report changes")
  }
  if report.ErrorMarker == "" {
    t.Fatalf("expected error marker for missing module")
  }
}

func TestNotifyModuleEdited_NoChangeNoFanout(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(2)
  vmod, _ := generateFor(t, env, seed)
  ctx := context.Background()

  // Baseline observation, then a no-op edit notification.
  if _, err := env.events.NotifyModuleEdited(ctx, seed.module.ID); err != nil {
    t.Fatalf("baseline: %v", err)
  }
  outcome, err := env.events.NotifyModuleEdited(ctx, seed.module.ID)
  if err != nil {
    t.Fatalf("NotifyModuleEdited: %v", err)
  }
  if outcome.Report.HasChanges {
    t.Fatalf("expected no changes")
  }
  if outcome.StudentsTotal != 0 || outcome.SyncedDirectly != 0 || outcome.TasksEnqueued != 0 {
    t.Fatalf("no-change notification must not fan out, got %+v", outcome)
  }
  if len(env.store.syncEvents[vmod.ID]) != 0 {
    t.Fatalf("no sync should have run")
  }
}

func TestNotifyModuleEdited_SmallFanoutSyncsInline(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(2)
  ctx := context.Background()

  var vmodIDs []uuid.UUID
  for i := 0; i < 3; i++ {
    vmod, _ := generateFor(t, env, seed)
    vmodIDs = append(vmodIDs, vmod.ID)
  }
  if _, err := env.events.NotifyModuleEdited(ctx, seed.module.ID); err != nil {
    t.Fatalf("baseline: %v", err)
  }

  env.store.topics[seed.topics[0].ID].TheoryContent = "Contenido revisado"
  outcome, err := env.events.NotifyModuleEdited(ctx, seed.module.ID)
  if err != nil {
    t.Fatalf("NotifyModuleEdited: %v", err)
  }
  if !outcome.Report.HasChanges {
    t.Fatalf("expected detected changes")
  }
  if outcome.StudentsTotal != 3 || outcome.SyncedDirectly != 3 {
    t.Fatalf("expected 3 inline syncs, got %+v", outcome)
  }
  if outcome.TasksEnqueued != 0 {
    t.Fatalf("small fan-out must not enqueue tasks, got %d", outcome.TasksEnqueued)
  }
  for _, id := range vmodIDs {
    if len(env.store.syncEvents[id]) != 1 {
      t.Fatalf("expected exactly one sync per student module")
    }
  }
}

func TestNotifyModuleEdited_LargeFanoutEnqueues(t *testing.T) {
  env := newTestEnv(t)
  seed := env.seedModule(2)
  ctx := context.Background()

  var studentIDs []uuid.UUID
  for i := 0; i < 4; i++ {
    vmod, _ := generateFor(t, env, seed)
    studentIDs = append(studentIDs, vmod.StudentID)
  }
  if _, err := env.events.NotifyModuleEdited(ctx, seed.module.ID); err != nil {
    t.Fatalf("baseline: %v", err)
  }

  // One student already has an in-flight task for this module.
  if _, err := env.queue.Enqueue(ctx, EnqueueRequest{
    StudentID: studentIDs[0], ModuleID: seed.module.ID, TaskType: types.TaskTypeUpdate,
  }); err != nil {
    t.Fatalf("pre-enqueue: %v", err)
  }

  env.store.topics[seed.topics[0].ID].TheoryContent = "Contenido revisado"
  outcome, err := env.events.NotifyModuleEdited(ctx, seed.module.ID)
  if err != nil {
    t.Fatalf("NotifyModuleEdited: %v", err)
  }
  if outcome.StudentsTotal != 4 {
    t.Fatalf("expected 4 students, got %d", outcome.StudentsTotal)
  }
  if outcome.SyncedDirectly != 0 {
    t.Fatalf("large fan-out must go through the queue, got %d inline", outcome.SyncedDirectly)
  }
  if outcome.TasksEnqueued != 3 || outcome.AlreadyInFlight != 1 {
    t.Fatalf("expected 3 enqueued + 1 in flight, got %+v", outcome)
  }
}
