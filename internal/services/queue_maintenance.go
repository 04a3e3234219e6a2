package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/sse"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

const (
  // queueLookahead is how many locked topics sit ready ahead of the active one.
  queueLookahead = 2
  // progressTrigger is the percentage at which queue top-up kicks in, so the
  // next topic is generated before the student finishes the current one.
  progressTrigger = 80.0
)

// ProgressOutcome reports what a single progress event caused.
type ProgressOutcome struct {
  VirtualTopicID  uuid.UUID  `json:"virtual_topic_id"`
  Progress        float64    `json:"progress"`
  TopicCompleted  bool       `json:"topic_completed"`
  UnlockedTopicID *uuid.UUID `json:"unlocked_topic_id,omitempty"`
  TopicsQueued    int        `json:"topics_queued"`
  ModuleCompleted bool       `json:"module_completed"`
}

type QueueMaintenanceService interface {
  // OnProgress records a student's progress on a topic and maintains the
  // module's topic queue: below 80% it only stores the value, at 80% it tops
  // the queue up, and at 100% it completes the topic and unlocks the next
  // locked one. Safe to call repeatedly with the same value.
  OnProgress(ctx context.Context, virtualTopicID uuid.UUID, progress float64) (*ProgressOutcome, error)

  // MaintainQueue tops the module's queue up to its target size (one active
  // topic plus the lookahead of locked ones, bounded by the published topic
  // count) and completes the module when the originals are exhausted. When no
  // topic is active but locked ones remain, the earliest locked topic is
  // promoted so the student is never left without one. Idempotent.
  MaintainQueue(ctx context.Context, virtualModuleID uuid.UUID) (int, error)
}

type queueMaintenanceService struct {
  db          *gorm.DB
  log         *logger.Logger
  profiles    ProfileService
  topicGen    TopicGenerationService
  notifier    EventNotifier
  topicRepo   repos.TopicRepo
  vmoduleRepo repos.VirtualModuleRepo
  vtopicRepo  repos.VirtualTopicRepo
}

func NewQueueMaintenanceService(
  db *gorm.DB,
  baseLog *logger.Logger,
  profiles ProfileService,
  topicGen TopicGenerationService,
  notifier EventNotifier,
  topicRepo repos.TopicRepo,
  vmoduleRepo repos.VirtualModuleRepo,
  vtopicRepo repos.VirtualTopicRepo,
) QueueMaintenanceService {
  return &queueMaintenanceService{
    db:          db,
    log:         baseLog.With("service", "QueueMaintenanceService"),
    profiles:    profiles,
    topicGen:    topicGen,
    notifier:    notifier,
    topicRepo:   topicRepo,
    vmoduleRepo: vmoduleRepo,
    vtopicRepo:  vtopicRepo,
  }
}

func (s *queueMaintenanceService) OnProgress(ctx context.Context, virtualTopicID uuid.UUID, progress float64) (*ProgressOutcome, error) {
  if progress < 0 || progress > 100 {
    return nil, apperr.InvalidState("progress %.1f out of range", progress)
  }

  vts, err := s.vtopicRepo.GetByIDs(ctx, nil, []uuid.UUID{virtualTopicID})
  if err != nil {
    return nil, fmt.Errorf("load virtual topic: %w", err)
  }
  if len(vts) == 0 {
    return nil, apperr.NotFound("virtual topic %s", virtualTopicID)
  }
  vt := vts[0]
  if vt.Status == types.TopicStatusArchived {
    return nil, apperr.InvalidState("virtual topic %s is archived", virtualTopicID)
  }

  outcome := &ProgressOutcome{VirtualTopicID: vt.ID, Progress: progress}

  if err := s.vtopicRepo.UpdateProgress(ctx, nil, vt.ID, progress); err != nil {
    return nil, fmt.Errorf("update progress: %w", err)
  }
  if err := s.vmoduleRepo.TouchActivity(ctx, nil, vt.VirtualModuleID); err != nil {
    s.log.Warn("Failed to touch module activity", "virtual_module_id", vt.VirtualModuleID, "error", err)
  }

  if progress < progressTrigger {
    return outcome, nil
  }

  if progress >= 100 {
    // One conditional update wins the completion; the losers see the topic
    // already out of active and skip the unlock.
    completed, err := s.vtopicRepo.CompleteActive(ctx, nil, vt.ID)
    if err != nil {
      return nil, fmt.Errorf("complete topic: %w", err)
    }
    outcome.TopicCompleted = completed
    if completed {
      next, err := s.vtopicRepo.UnlockNextLocked(ctx, nil, vt.VirtualModuleID)
      if err != nil {
        return nil, fmt.Errorf("unlock next topic: %w", err)
      }
      if next != nil {
        outcome.UnlockedTopicID = &next.ID
        s.notifyUnlock(ctx, vt.VirtualModuleID, next)
      }
    }
  }

  queued, err := s.MaintainQueue(ctx, vt.VirtualModuleID)
  if err != nil {
    // The stored progress is already durable; maintenance retries on the
    // next event.
    s.log.Error("Queue maintenance failed after progress", "virtual_module_id", vt.VirtualModuleID, "error", err)
    return outcome, nil
  }
  outcome.TopicsQueued = queued

  done, err := s.refreshModuleProgress(ctx, vt.VirtualModuleID)
  if err != nil {
    s.log.Error("Failed to refresh module progress", "virtual_module_id", vt.VirtualModuleID, "error", err)
    return outcome, nil
  }
  outcome.ModuleCompleted = done
  return outcome, nil
}

func (s *queueMaintenanceService) MaintainQueue(ctx context.Context, virtualModuleID uuid.UUID) (int, error) {
  vmods, err := s.vmoduleRepo.GetByIDs(ctx, nil, []uuid.UUID{virtualModuleID})
  if err != nil {
    return 0, fmt.Errorf("load virtual module: %w", err)
  }
  if len(vmods) == 0 {
    return 0, apperr.NotFound("virtual module %s", virtualModuleID)
  }
  vmod := vmods[0]

  published, err := s.topicRepo.ListPublishedByModuleID(ctx, nil, vmod.ModuleID)
  if err != nil {
    return 0, fmt.Errorf("list published topics: %w", err)
  }
  vtopics, err := s.vtopicRepo.ListByVirtualModuleID(ctx, nil, vmod.ID)
  if err != nil {
    return 0, fmt.Errorf("list virtual topics: %w", err)
  }

  have := make(map[uuid.UUID]bool, len(vtopics))
  activeCount, lockedCount := 0, 0
  for _, vt := range vtopics {
    if vt.Status != types.TopicStatusArchived {
      have[vt.TopicID] = true
    }
    switch vt.Status {
    case types.TopicStatusActive:
      activeCount++
    case types.TopicStatusLocked:
      lockedCount++
    }
  }

  // A sync can archive the active topic out from under the queue; promote
  // the earliest locked one so progress can resume.
  if activeCount == 0 && lockedCount > 0 {
    next, err := s.vtopicRepo.UnlockNextLocked(ctx, nil, vmod.ID)
    if err != nil {
      return 0, fmt.Errorf("promote locked topic: %w", err)
    }
    if next != nil {
      activeCount++
      lockedCount--
      s.notifyUnlock(ctx, vmod.ID, next)
    }
  }

  profile := s.profiles.GetCognitiveProfile(ctx, nil, vmod.StudentID)

  created := 0
  for _, t := range published {
    if lockedCount >= queueLookahead {
      break
    }
    if have[t.ID] {
      continue
    }
    // The first topic of an idle queue comes in unlocked, everything else
    // waits its turn.
    lock := activeCount > 0 || created > 0 || lockedCount > 0
    if _, err := s.topicGen.CreateVirtualTopic(ctx, nil, vmod, t, profile, TopicGenerationOptions{ForceLock: &lock}); err != nil {
      s.log.Error("Failed to queue virtual topic", "virtual_module_id", vmod.ID, "topic_id", t.ID, "error", err)
      continue
    }
    created++
    if lock {
      lockedCount++
    } else {
      activeCount++
    }
  }

  if created > 0 {
    s.log.Info("Topped up topic queue", "virtual_module_id", vmod.ID, "created", created,
      "active", activeCount, "locked", lockedCount)
  }
  return created, nil
}

// refreshModuleProgress recomputes the module-level progress from its topics
// and flips the module to completed when nothing remains to do. Returns
// whether the module is now complete.
func (s *queueMaintenanceService) refreshModuleProgress(ctx context.Context, virtualModuleID uuid.UUID) (bool, error) {
  vmods, err := s.vmoduleRepo.GetByIDs(ctx, nil, []uuid.UUID{virtualModuleID})
  if err != nil {
    return false, fmt.Errorf("load virtual module: %w", err)
  }
  if len(vmods) == 0 {
    return false, apperr.NotFound("virtual module %s", virtualModuleID)
  }
  vmod := vmods[0]

  vtopics, err := s.vtopicRepo.ListByVirtualModuleID(ctx, nil, vmod.ID)
  if err != nil {
    return false, fmt.Errorf("list virtual topics: %w", err)
  }
  total, completedCount, pending := 0, 0, 0
  for _, vt := range vtopics {
    if vt.Status == types.TopicStatusArchived {
      continue
    }
    total++
    switch vt.Status {
    case types.TopicStatusCompleted:
      completedCount++
    default:
      pending++
    }
  }

  remaining, err := s.countUnvirtualized(ctx, vmod)
  if err != nil {
    return false, err
  }

  moduleProgress := 0.0
  if total > 0 {
    moduleProgress = float64(completedCount) / float64(total) * 100
  }
  updates := map[string]interface{}{"progress": moduleProgress}
  done := total > 0 && pending == 0 && remaining == 0
  if done {
    updates["completion_status"] = types.CompletionCompleted
    updates["completed_at"] = time.Now().UTC()
  } else if completedCount > 0 || moduleProgress > 0 {
    updates["completion_status"] = types.CompletionInProgress
  }
  if err := s.vmoduleRepo.UpdateFields(ctx, nil, vmod.ID, updates); err != nil {
    return false, fmt.Errorf("update module progress: %w", err)
  }
  if done {
    s.log.Info("Virtual module completed", "virtual_module_id", vmod.ID)
  }
  return done, nil
}

func (s *queueMaintenanceService) countUnvirtualized(ctx context.Context, vmod *types.VirtualModule) (int, error) {
  published, err := s.topicRepo.ListPublishedByModuleID(ctx, nil, vmod.ModuleID)
  if err != nil {
    return 0, fmt.Errorf("list published topics: %w", err)
  }
  vtopics, err := s.vtopicRepo.ListByVirtualModuleID(ctx, nil, vmod.ID)
  if err != nil {
    return 0, fmt.Errorf("list virtual topics: %w", err)
  }
  have := make(map[uuid.UUID]bool, len(vtopics))
  for _, vt := range vtopics {
    if vt.Status != types.TopicStatusArchived {
      have[vt.TopicID] = true
    }
  }
  remaining := 0
  for _, t := range published {
    if !have[t.ID] {
      remaining++
    }
  }
  return remaining, nil
}

func (s *queueMaintenanceService) notifyUnlock(ctx context.Context, virtualModuleID uuid.UUID, next *types.VirtualTopic) {
  vmods, err := s.vmoduleRepo.GetByIDs(ctx, nil, []uuid.UUID{virtualModuleID})
  if err != nil || len(vmods) == 0 {
    s.log.Warn("Failed to load module for unlock notification", "virtual_module_id", virtualModuleID, "error", err)
    return
  }
  s.notifier.Notify(ctx, vmods[0].StudentID, sse.SSEEventTopicUnlocked, map[string]interface{}{
    "virtual_module_id": virtualModuleID,
    "virtual_topic_id":  next.ID,
    "topic_id":          next.TopicID,
    "order":             next.Order,
  })
}
