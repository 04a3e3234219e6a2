package services

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// syncFanoutThreshold is the number of affected students above which edits are
// dispatched through the task queue instead of synchronized inline.
const syncFanoutThreshold = 3

// ModuleEditOutcome reports what an instructor edit notification caused.
type ModuleEditOutcome struct {
  Report          ChangeReport `json:"report"`
  StudentsTotal   int          `json:"students_total"`
  TasksEnqueued   int          `json:"tasks_enqueued"`
  SyncedDirectly  int          `json:"synced_directly"`
  AlreadyInFlight int          `json:"already_in_flight"`
}

type ModuleEventService interface {
  // NotifyModuleEdited runs change detection for the module and, when the
  // content actually changed, propagates the edit to every student's virtual
  // module: small fan-outs are synchronized inline, larger ones go through
  // the task queue so the request returns promptly.
  NotifyModuleEdited(ctx context.Context, moduleID uuid.UUID) (*ModuleEditOutcome, error)
}

type moduleEventService struct {
  db          *gorm.DB
  log         *logger.Logger
  detector    ChangeDetectionService
  syncer      SyncService
  queue       TaskQueueService
  vmoduleRepo repos.VirtualModuleRepo
}

func NewModuleEventService(
  db *gorm.DB,
  baseLog *logger.Logger,
  detector ChangeDetectionService,
  syncer SyncService,
  queue TaskQueueService,
  vmoduleRepo repos.VirtualModuleRepo,
) ModuleEventService {
  return &moduleEventService{
    db:          db,
    log:         baseLog.With("service", "ModuleEventService"),
    detector:    detector,
    syncer:      syncer,
    queue:       queue,
    vmoduleRepo: vmoduleRepo,
  }
}

func (s *moduleEventService) NotifyModuleEdited(ctx context.Context, moduleID uuid.UUID) (*ModuleEditOutcome, error) {
  outcome := &ModuleEditOutcome{}
  outcome.Report = s.detector.DetectChanges(ctx, nil, moduleID)
  if !outcome.Report.HasChanges {
    return outcome, nil
  }

  vmods, err := s.vmoduleRepo.ListByModuleID(ctx, nil, moduleID)
  if err != nil {
    return nil, err
  }
  outcome.StudentsTotal = len(vmods)

  if len(vmods) <= syncFanoutThreshold {
    for _, vmod := range vmods {
      if _, err := s.syncer.Synchronize(ctx, vmod.ID, false); err != nil {
        s.log.Error("Inline sync failed after module edit",
          "module_id", moduleID, "virtual_module_id", vmod.ID, "error", err)
        continue
      }
      outcome.SyncedDirectly++
    }
    return outcome, nil
  }

  for _, vmod := range vmods {
    _, err := s.queue.Enqueue(ctx, EnqueueRequest{
      StudentID: vmod.StudentID,
      ModuleID:  moduleID,
      TaskType:  types.TaskTypeUpdate,
    })
    if err != nil {
      if errors.Is(err, apperr.ErrConflict) {
        // An in-flight task for this pair will pick the change up anyway.
        outcome.AlreadyInFlight++
        continue
      }
      s.log.Error("Failed to enqueue update task after module edit",
        "module_id", moduleID, "student_id", vmod.StudentID, "error", err)
      continue
    }
    outcome.TasksEnqueued++
  }
  s.log.Info("Dispatched module edit",
    "module_id", moduleID, "students", outcome.StudentsTotal,
    "enqueued", outcome.TasksEnqueued, "synced", outcome.SyncedDirectly,
    "in_flight", outcome.AlreadyInFlight)
  return outcome, nil
}
