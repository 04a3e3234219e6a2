package services

import (
  "context"
  "testing"

  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/types"
)

// testEnv wires the full service graph over the in-memory fakes.
type testEnv struct {
  store      *fakeStore
  profiles   ProfileService
  topicGen   TopicGenerationService
  generator  ModuleGenerationService
  syncer     SyncService
  maintainer QueueMaintenanceService
  detector   ChangeDetectionService
  queue      TaskQueueService
  events     ModuleEventService
}

func newTestEnv(t *testing.T) *testEnv {
  t.Helper()
  log := testLogger(t)
  store := newFakeStore()

  moduleRepo := &fakeModuleRepo{s: store}
  topicRepo := &fakeTopicRepo{s: store}
  contentRepo := &fakeContentItemRepo{s: store}
  evalRepo := &fakeEvaluationRepo{s: store}
  profileRepo := &fakeStudentProfileRepo{s: store}
  versionRepo := &fakeModuleVersionRepo{s: store}
  vmoduleRepo := &fakeVirtualModuleRepo{s: store}
  vtopicRepo := &fakeVirtualTopicRepo{s: store}
  vcontentRepo := &fakeVirtualContentRepo{s: store}
  taskRepo := &fakeGenerationTaskRepo{s: store}

  selector := NewContentSelector(log, DefaultSelectorWeights)
  notifier := NewNoopNotifier()
  profiles := NewProfileService(nil, log, profileRepo)
  topicGen := NewTopicGenerationService(nil, log, selector, vtopicRepo, vcontentRepo, contentRepo)
  generator := NewModuleGenerationService(nil, log, profiles, topicGen, notifier, moduleRepo, topicRepo, vmoduleRepo, vtopicRepo)
  syncer := NewSyncService(nil, log, profiles, topicGen, notifier, topicRepo, contentRepo, vmoduleRepo, vtopicRepo, vcontentRepo)
  maintainer := NewQueueMaintenanceService(nil, log, profiles, topicGen, notifier, topicRepo, vmoduleRepo, vtopicRepo)
  detector := NewChangeDetectionService(nil, log, moduleRepo, topicRepo, evalRepo, versionRepo)
  queue := NewTaskQueueService(nil, log, taskRepo, generator, syncer, vmoduleRepo)
  events := NewModuleEventService(nil, log, detector, syncer, queue, vmoduleRepo)

  return &testEnv{
    store:      store,
    profiles:   profiles,
    topicGen:   topicGen,
    generator:  generator,
    syncer:     syncer,
    maintainer: maintainer,
    detector:   detector,
    queue:      queue,
    events:     events,
  }
}

// seedModule creates a module with n published topics, each carrying a slide
// and a text item.
func (e *testEnv) seedModule(n int) *fakeSeed {
  mod := e.store.addModule("Módulo de prueba")
  seed := &fakeSeed{module: mod}
  for i := 0; i < n; i++ {
    topic := e.store.addTopic(mod.ID, "Tema", true)
    e.store.addContent(topic.ID, types.ContentTypeSlide, 1)
    e.store.addContent(topic.ID, types.ContentTypeText, 2)
    seed.topics = append(seed.topics, topic)
  }
  return seed
}

type fakeSeed struct {
  module *types.Module
  topics []*types.Topic
}

// topicsOf returns the module's virtual topics in assignment order.
func (e *testEnv) topicsOf(virtualModuleID uuid.UUID) ([]*types.VirtualTopic, error) {
  repo := &fakeVirtualTopicRepo{s: e.store}
  return repo.ListByVirtualModuleID(context.Background(), nil, virtualModuleID)
}

func (e *testEnv) contentsOf(virtualTopicID uuid.UUID) []*types.VirtualContent {
  repo := &fakeVirtualContentRepo{s: e.store}
  out, _ := repo.ListActiveByVirtualTopicID(context.Background(), nil, virtualTopicID)
  return out
}

// activeLockedCounts tallies the queue state for invariant checks.
func (e *testEnv) activeLockedCounts(virtualModuleID uuid.UUID) (active, locked int) {
  vts, _ := e.topicsOf(virtualModuleID)
  for _, vt := range vts {
    switch vt.Status {
    case types.TopicStatusActive:
      active++
    case types.TopicStatusLocked:
      locked++
    }
  }
  return active, locked
}
