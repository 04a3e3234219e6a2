package services

import (
  "context"
  "encoding/json"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/sse"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

const defaultInitialBatchSize = 2

// GenerateOptions tunes one GenerateModule call. A zero value uses defaults.
type GenerateOptions struct {
  StudyPlanID      uuid.UUID
  InitialBatchSize int
  Prefs            Preferences
}

type ModuleGenerationService interface {
  // GenerateModule materializes a virtual module for the student: the module
  // row itself, an initial batch of virtual topics (first one active, the rest
  // locked) and their personalized contents. Idempotent per (student, module):
  // a completed module is returned as-is, a partially generated one is
  // resumed. Honors the deadline on ctx; on expiry the work done so far is
  // kept and a later call picks it up.
  GenerateModule(ctx context.Context, studentID, moduleID uuid.UUID, opts GenerateOptions) (*types.VirtualModule, error)
}

type moduleGenerationService struct {
  db          *gorm.DB
  log         *logger.Logger
  profiles    ProfileService
  topicGen    TopicGenerationService
  notifier    EventNotifier
  moduleRepo  repos.ModuleRepo
  topicRepo   repos.TopicRepo
  vmoduleRepo repos.VirtualModuleRepo
  vtopicRepo  repos.VirtualTopicRepo
}

func NewModuleGenerationService(
  db *gorm.DB,
  baseLog *logger.Logger,
  profiles ProfileService,
  topicGen TopicGenerationService,
  notifier EventNotifier,
  moduleRepo repos.ModuleRepo,
  topicRepo repos.TopicRepo,
  vmoduleRepo repos.VirtualModuleRepo,
  vtopicRepo repos.VirtualTopicRepo,
) ModuleGenerationService {
  return &moduleGenerationService{
    db:          db,
    log:         baseLog.With("service", "ModuleGenerationService"),
    profiles:    profiles,
    topicGen:    topicGen,
    notifier:    notifier,
    moduleRepo:  moduleRepo,
    topicRepo:   topicRepo,
    vmoduleRepo: vmoduleRepo,
    vtopicRepo:  vtopicRepo,
  }
}

func (s *moduleGenerationService) GenerateModule(ctx context.Context, studentID, moduleID uuid.UUID, opts GenerateOptions) (*types.VirtualModule, error) {
  mods, err := s.moduleRepo.GetByIDs(ctx, nil, []uuid.UUID{moduleID})
  if err != nil {
    return nil, fmt.Errorf("load module: %w", err)
  }
  if len(mods) == 0 {
    return nil, apperr.NotFound("module %s", moduleID)
  }
  mod := mods[0]

  batchSize := opts.InitialBatchSize
  if batchSize <= 0 {
    batchSize = defaultInitialBatchSize
  }
  studyPlanID := opts.StudyPlanID
  if studyPlanID == uuid.Nil {
    studyPlanID = mod.StudyPlanID
  }

  profile := s.profiles.GetCognitiveProfile(ctx, nil, studentID)

  adaptations, _ := json.Marshal(map[string]interface{}{
    "difficulty_adjustment": AdjustDifficulty(profile),
    "dyslexia_friendly":     profile.Dyslexia,
    "adhd_optimized":        profile.ADHD,
    "high_contrast":         profile.VisualImpairment,
  })

  vmod, created, err := s.vmoduleRepo.CreateIfAbsent(ctx, nil, &types.VirtualModule{
    StudyPlanID:      studyPlanID,
    ModuleID:         moduleID,
    StudentID:        studentID,
    Adaptations:      datatypes.JSON(adaptations),
    GenerationStatus: types.GenerationStatusPending,
    CompletionStatus: types.CompletionNotStarted,
  })
  if err != nil {
    return nil, fmt.Errorf("create virtual module: %w", err)
  }
  if !created && vmod.GenerationStatus == types.GenerationStatusCompleted {
    s.log.Debug("Virtual module already generated", "virtual_module_id", vmod.ID)
    return vmod, nil
  }

  fail := func(stage string, cause error) (*types.VirtualModule, error) {
    s.log.Error("Module generation failed", "virtual_module_id", vmod.ID, "stage", stage, "error", cause)
    // Partial progress stays; failed just reports the last outcome and a
    // re-invocation resumes from what exists.
    if uerr := s.vmoduleRepo.UpdateFields(ctx, nil, vmod.ID, map[string]interface{}{
      "generation_status": types.GenerationStatusFailed,
    }); uerr != nil {
      s.log.Error("Failed to mark virtual module failed", "virtual_module_id", vmod.ID, "error", uerr)
    }
    s.notifier.Notify(ctx, studentID, sse.SSEEventGenerationFailed, map[string]interface{}{
      "virtual_module_id": vmod.ID,
      "stage":             stage,
      "error":             cause.Error(),
    })
    return nil, fmt.Errorf("%s: %w", stage, cause)
  }
  progress := func(pct int) {
    if err := s.vmoduleRepo.UpdateFields(ctx, nil, vmod.ID, map[string]interface{}{
      "generation_status":   types.GenerationStatusGenerating,
      "generation_progress": pct,
    }); err != nil {
      s.log.Warn("Failed to update generation progress", "virtual_module_id", vmod.ID, "error", err)
    }
    s.notifier.Notify(ctx, studentID, sse.SSEEventGenerationProgress, map[string]interface{}{
      "virtual_module_id": vmod.ID,
      "progress":          pct,
    })
  }

  progress(50)

  topics, err := s.topicRepo.ListPublishedByModuleID(ctx, nil, moduleID)
  if err != nil {
    return fail("list published topics", err)
  }

  existing, err := s.vtopicRepo.ListByVirtualModuleID(ctx, nil, vmod.ID)
  if err != nil {
    return fail("list virtual topics", err)
  }
  have := make(map[uuid.UUID]bool, len(existing))
  for _, vt := range existing {
    have[vt.TopicID] = true
  }

  // A module with no published topics still generates: it completes with an
  // empty queue and the synchronizer adds topics as they get published.
  generated := 0
  for _, topic := range topics {
    if len(have)+generated >= batchSize {
      break
    }
    if have[topic.ID] {
      continue
    }
    if err := ctx.Err(); err != nil {
      s.log.Warn("Generation deadline hit, keeping partial progress",
        "virtual_module_id", vmod.ID, "generated", generated)
      return vmod, fmt.Errorf("generation interrupted: %w", err)
    }
    if _, err := s.topicGen.CreateVirtualTopic(ctx, nil, vmod, topic, profile, TopicGenerationOptions{Prefs: opts.Prefs}); err != nil {
      // One bad topic never aborts the module.
      s.log.Error("Failed to generate virtual topic", "virtual_module_id", vmod.ID, "topic_id", topic.ID, "error", err)
      continue
    }
    generated++
  }

  if err := s.vmoduleRepo.UpdateFields(ctx, nil, vmod.ID, map[string]interface{}{
    "generation_status":   types.GenerationStatusCompleted,
    "generation_progress": 100,
  }); err != nil {
    return fail("mark completed", err)
  }
  vmod.GenerationStatus = types.GenerationStatusCompleted
  vmod.GenerationProgress = 100

  s.notifier.Notify(ctx, studentID, sse.SSEEventGenerationCompleted, map[string]interface{}{
    "virtual_module_id": vmod.ID,
    "topics_generated":  generated,
    "topics_total":      len(topics),
  })
  s.log.Info("Generated virtual module",
    "virtual_module_id", vmod.ID, "student_id", studentID, "module_id", moduleID,
    "topics_generated", generated, "topics_total", len(topics))
  return vmod, nil
}
