package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

const (
  defaultClaimLimit   = 4
  defaultClaimBudget  = 5 * time.Minute
  defaultPollInterval = 10 * time.Second
  defaultStaleGrace   = 15 * time.Minute
  defaultPurgeAfter   = 7 * 24 * time.Hour
  housekeepingEvery   = 5 * time.Minute
)

// estimatedDurationByType seeds each task's duration estimate, which the
// claim's greedy budget fill runs on.
var estimatedDurationByType = map[string]int{
  types.TaskTypeGenerate: 120,
  types.TaskTypeUpdate:   45,
  types.TaskTypeEnhance:  90,
}

// EnqueueRequest describes one task to enqueue.
type EnqueueRequest struct {
  StudentID uuid.UUID
  ModuleID  uuid.UUID
  TaskType  string
  Priority  int
  Payload   map[string]interface{}
}

// WorkerConfig tunes the background worker. Zero values take defaults.
type WorkerConfig struct {
  ClaimLimit   int
  ClaimBudget  time.Duration
  PollInterval time.Duration
  StaleGrace   time.Duration
  PurgeAfter   time.Duration
}

type TaskQueueService interface {
  // Enqueue registers a generation/update task. At most one in-flight task is
  // allowed per (student, module); a second enqueue returns a conflict.
  Enqueue(ctx context.Context, req EnqueueRequest) (*types.GenerationTask, error)
  // ClaimNext atomically claims the next batch of runnable tasks within the
  // duration budget.
  ClaimNext(ctx context.Context, limit int, budget time.Duration) ([]*types.GenerationTask, error)
  Complete(ctx context.Context, taskID uuid.UUID, result map[string]interface{}) error
  // Fail records the failure and re-queues the task while attempts remain.
  // Returns whether the task will be retried.
  Fail(ctx context.Context, taskID uuid.UUID, taskErr error) (bool, error)
  // ResetStale returns crashed-over processing tasks to pending.
  ResetStale(ctx context.Context, grace time.Duration) (int64, error)
  // Purge deletes completed/failed tasks older than the retention window.
  Purge(ctx context.Context, olderThan time.Duration) (int64, error)
  // StartWorker runs the claim/dispatch loop plus a housekeeping ticker until
  // ctx is cancelled.
  StartWorker(ctx context.Context, cfg WorkerConfig)
}

type taskQueueService struct {
  db        *gorm.DB
  log       *logger.Logger
  taskRepo  repos.GenerationTaskRepo
  generator ModuleGenerationService
  syncer    SyncService
  vmodules  repos.VirtualModuleRepo
}

func NewTaskQueueService(
  db *gorm.DB,
  baseLog *logger.Logger,
  taskRepo repos.GenerationTaskRepo,
  generator ModuleGenerationService,
  syncer SyncService,
  vmodules repos.VirtualModuleRepo,
) TaskQueueService {
  return &taskQueueService{
    db:        db,
    log:       baseLog.With("service", "TaskQueueService"),
    taskRepo:  taskRepo,
    generator: generator,
    syncer:    syncer,
    vmodules:  vmodules,
  }
}

func (s *taskQueueService) Enqueue(ctx context.Context, req EnqueueRequest) (*types.GenerationTask, error) {
  switch req.TaskType {
  case types.TaskTypeGenerate, types.TaskTypeUpdate, types.TaskTypeEnhance:
  default:
    return nil, apperr.InvalidState("unknown task type %q", req.TaskType)
  }
  priority := req.Priority
  if priority <= 0 {
    priority = 5
  }
  var payload datatypes.JSON
  if req.Payload != nil {
    raw, err := json.Marshal(req.Payload)
    if err != nil {
      return nil, fmt.Errorf("serialize payload: %w", err)
    }
    payload = datatypes.JSON(raw)
  }

  task, err := s.taskRepo.CreateIfNoInFlight(ctx, nil, &types.GenerationTask{
    StudentID:          req.StudentID,
    ModuleID:           req.ModuleID,
    TaskType:           req.TaskType,
    Priority:           priority,
    Status:             types.TaskStatusPending,
    MaxAttempts:        3,
    Payload:            payload,
    EstimatedDurationS: estimatedDurationByType[req.TaskType],
  })
  if err != nil {
    return nil, err
  }
  s.log.Info("Enqueued generation task",
    "task_id", task.ID, "task_type", task.TaskType, "student_id", req.StudentID, "module_id", req.ModuleID)
  return task, nil
}

func (s *taskQueueService) ClaimNext(ctx context.Context, limit int, budget time.Duration) ([]*types.GenerationTask, error) {
  if limit <= 0 {
    limit = defaultClaimLimit
  }
  if budget <= 0 {
    budget = defaultClaimBudget
  }
  return s.taskRepo.ClaimNextBatch(ctx, nil, limit, budget)
}

func (s *taskQueueService) Complete(ctx context.Context, taskID uuid.UUID, result map[string]interface{}) error {
  return s.taskRepo.MarkCompleted(ctx, nil, taskID, result)
}

func (s *taskQueueService) Fail(ctx context.Context, taskID uuid.UUID, taskErr error) (bool, error) {
  msg := ""
  if taskErr != nil {
    msg = taskErr.Error()
  }
  return s.taskRepo.MarkFailed(ctx, nil, taskID, msg)
}

func (s *taskQueueService) ResetStale(ctx context.Context, grace time.Duration) (int64, error) {
  if grace <= 0 {
    grace = defaultStaleGrace
  }
  return s.taskRepo.ResetStaleProcessing(ctx, nil, grace)
}

func (s *taskQueueService) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
  if olderThan <= 0 {
    olderThan = defaultPurgeAfter
  }
  return s.taskRepo.PurgeFinishedBefore(ctx, nil, time.Now().Add(-olderThan))
}

func (s *taskQueueService) StartWorker(ctx context.Context, cfg WorkerConfig) {
  if cfg.ClaimLimit <= 0 {
    cfg.ClaimLimit = defaultClaimLimit
  }
  if cfg.ClaimBudget <= 0 {
    cfg.ClaimBudget = defaultClaimBudget
  }
  if cfg.PollInterval <= 0 {
    cfg.PollInterval = defaultPollInterval
  }
  if cfg.StaleGrace <= 0 {
    cfg.StaleGrace = defaultStaleGrace
  }
  if cfg.PurgeAfter <= 0 {
    cfg.PurgeAfter = defaultPurgeAfter
  }

  go func() {
    ticker := time.NewTicker(cfg.PollInterval)
    defer ticker.Stop()
    s.log.Info("Generation task worker started",
      "poll_interval", cfg.PollInterval, "claim_limit", cfg.ClaimLimit)
    for {
      select {
      case <-ctx.Done():
        s.log.Info("Generation task worker stopped")
        return
      case <-ticker.C:
        s.tick(ctx, cfg)
      }
    }
  }()

  go func() {
    ticker := time.NewTicker(housekeepingEvery)
    defer ticker.Stop()
    for {
      select {
      case <-ctx.Done():
        return
      case <-ticker.C:
        if n, err := s.ResetStale(ctx, cfg.StaleGrace); err != nil {
          s.log.Error("Stale task sweep failed", "error", err)
        } else if n > 0 {
          s.log.Warn("Reset stale processing tasks", "count", n)
        }
        if n, err := s.Purge(ctx, cfg.PurgeAfter); err != nil {
          s.log.Error("Task purge failed", "error", err)
        } else if n > 0 {
          s.log.Info("Purged finished tasks", "count", n)
        }
      }
    }
  }()
}

func (s *taskQueueService) tick(ctx context.Context, cfg WorkerConfig) {
  tasks, err := s.ClaimNext(ctx, cfg.ClaimLimit, cfg.ClaimBudget)
  if err != nil {
    s.log.Error("Failed to claim tasks", "error", err)
    return
  }
  if len(tasks) == 0 {
    return
  }

  g, gctx := errgroup.WithContext(ctx)
  for _, task := range tasks {
    task := task
    g.Go(func() error {
      s.process(gctx, task)
      return nil
    })
  }
  _ = g.Wait()
}

func (s *taskQueueService) process(ctx context.Context, task *types.GenerationTask) {
  deadline := time.Duration(task.EstimatedDurationS) * time.Second
  taskCtx, cancel := context.WithTimeout(ctx, deadline)
  defer cancel()

  result, err := s.dispatch(taskCtx, task)
  if err != nil {
    retried, ferr := s.Fail(ctx, task.ID, err)
    if ferr != nil {
      s.log.Error("Failed to record task failure", "task_id", task.ID, "error", ferr)
      return
    }
    s.log.Warn("Task failed", "task_id", task.ID, "task_type", task.TaskType,
      "attempts", task.Attempts, "will_retry", retried, "error", err)
    return
  }
  if err := s.Complete(ctx, task.ID, result); err != nil {
    s.log.Error("Failed to mark task completed", "task_id", task.ID, "error", err)
    return
  }
  s.log.Info("Task completed", "task_id", task.ID, "task_type", task.TaskType)
}

func (s *taskQueueService) dispatch(ctx context.Context, task *types.GenerationTask) (map[string]interface{}, error) {
  switch task.TaskType {
  case types.TaskTypeGenerate:
    vmod, err := s.generator.GenerateModule(ctx, task.StudentID, task.ModuleID, GenerateOptions{})
    if err != nil {
      return nil, err
    }
    return map[string]interface{}{"virtual_module_id": vmod.ID.String()}, nil

  case types.TaskTypeUpdate, types.TaskTypeEnhance:
    vmod, err := s.vmodules.GetByStudentAndModule(ctx, nil, task.StudentID, task.ModuleID)
    if err != nil {
      return nil, fmt.Errorf("load virtual module: %w", err)
    }
    if vmod == nil {
      return nil, apperr.NotFound("virtual module for student %s module %s", task.StudentID, task.ModuleID)
    }
    // Enhance is an operator-forced resync that ignores the activity gate.
    force := task.TaskType == types.TaskTypeEnhance
    report, err := s.syncer.Synchronize(ctx, vmod.ID, force)
    if err != nil {
      return nil, err
    }
    return map[string]interface{}{
      "virtual_module_id": vmod.ID.String(),
      "skipped":           report.Skipped,
      "topics_added":      report.TopicsAdded,
      "topics_archived":   report.TopicsArchived,
      "contents_added":    report.ContentsAdded,
      "contents_archived": report.ContentsArchived,
      "errors":            len(report.Errors),
    }, nil

  default:
    return nil, apperr.InvalidState("unknown task type %q", task.TaskType)
  }
}
