package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

type GenerationTaskRepo interface {
  // CreateIfNoInFlight inserts the task unless a pending or processing task
  // already exists for the same (student, module) pair, in which case it
  // returns apperr.ErrConflict. The existence check locks matching rows so two
  // concurrent enqueues cannot both pass it; the partial unique index is the
  // backstop.
  CreateIfNoInFlight(ctx context.Context, tx *gorm.DB, task *types.GenerationTask) (*types.GenerationTask, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.GenerationTask, error)
  // ClaimNextBatch atomically claims up to limit pending tasks with attempts
  // left, ordered by (priority, created_at), greedily filling the duration
  // budget by each task's estimate. Claimed tasks become processing with
  // attempts incremented.
  ClaimNextBatch(ctx context.Context, tx *gorm.DB, limit int, budget time.Duration) ([]*types.GenerationTask, error)
  MarkCompleted(ctx context.Context, tx *gorm.DB, id uuid.UUID, result map[string]interface{}) error
  // MarkFailed re-queues the task to pending while attempts remain, otherwise
  // marks it terminally failed. Returns whether the task will be retried.
  MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, errMsg string) (bool, error)
  // ResetStaleProcessing moves processing tasks whose claim is older than the
  // grace period back to pending (crash recovery sweep).
  ResetStaleProcessing(ctx context.Context, tx *gorm.DB, grace time.Duration) (int64, error)
  PurgeFinishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type generationTaskRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewGenerationTaskRepo(db *gorm.DB, baseLog *logger.Logger) GenerationTaskRepo {
  repoLog := baseLog.With("repo", "GenerationTaskRepo")
  return &generationTaskRepo{db: db, log: repoLog}
}

func (r *generationTaskRepo) CreateIfNoInFlight(ctx context.Context, tx *gorm.DB, task *types.GenerationTask) (*types.GenerationTask, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if task == nil {
    return nil, nil
  }

  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var existing []*types.GenerationTask
    if err := txx.
      Clauses(clause.Locking{Strength: "UPDATE"}).
      Where("student_id = ? AND module_id = ? AND status IN ?",
        task.StudentID, task.ModuleID, []string{types.TaskStatusPending, types.TaskStatusProcessing}).
      Find(&existing).Error; err != nil {
      return err
    }
    if len(existing) > 0 {
      return apperr.Conflict("task already in flight for student %s module %s", task.StudentID, task.ModuleID)
    }
    return txx.Create(task).Error
  })
  if err != nil {
    return nil, err
  }
  return task, nil
}

func (r *generationTaskRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.GenerationTask, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.GenerationTask
  if len(ids) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *generationTaskRepo) ClaimNextBatch(ctx context.Context, tx *gorm.DB, limit int, budget time.Duration) ([]*types.GenerationTask, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    return []*types.GenerationTask{}, nil
  }

  var claimed []*types.GenerationTask

  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var candidates []*types.GenerationTask
    if err := txx.
      Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
      Where("status = ? AND attempts < max_attempts", types.TaskStatusPending).
      Order("priority ASC, created_at ASC").
      Limit(limit).
      Find(&candidates).Error; err != nil {
      return err
    }

    now := time.Now()
    remaining := budget
    for _, t := range candidates {
      if t == nil {
        continue
      }
      cost := time.Duration(t.EstimatedDurationS) * time.Second
      if budget > 0 && cost > remaining {
        continue
      }

      if err := txx.Model(&types.GenerationTask{}).
        Where("id = ? AND status = ?", t.ID, types.TaskStatusPending).
        Updates(map[string]interface{}{
          "status":                types.TaskStatusProcessing,
          "attempts":              gorm.Expr("attempts + 1"),
          "processing_started_at": now,
          "updated_at":            now,
        }).Error; err != nil {
        return err
      }

      t.Status = types.TaskStatusProcessing
      t.Attempts++
      t.ProcessingStartedAt = &now
      claimed = append(claimed, t)
      if budget > 0 {
        remaining -= cost
      }
    }
    return nil
  })

  if err != nil {
    return nil, err
  }
  return claimed, nil
}

func (r *generationTaskRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, id uuid.UUID, result map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }

  now := time.Now()
  updates := map[string]interface{}{
    "status":        types.TaskStatusCompleted,
    "completed_at":  now,
    "error_message": "",
    "updated_at":    now,
  }
  res := transaction.WithContext(ctx).
    Model(&types.GenerationTask{}).
    Where("id = ? AND status = ?", id, types.TaskStatusProcessing).
    Updates(updates)
  if res.Error != nil {
    return res.Error
  }
  // Zero rows means the task slipped out of processing, e.g. a stale sweep
  // reset it while the worker was still running.
  if res.RowsAffected == 0 {
    return apperr.InvalidState("task %s is not processing", id)
  }
  return nil
}

func (r *generationTaskRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, errMsg string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return false, nil
  }

  retried := false
  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var task types.GenerationTask
    qErr := txx.
      Clauses(clause.Locking{Strength: "UPDATE"}).
      Where("id = ?", id).
      First(&task).Error
    if errors.Is(qErr, gorm.ErrRecordNotFound) {
      return nil
    }
    if qErr != nil {
      return qErr
    }

    now := time.Now()
    status := types.TaskStatusFailed
    if task.Attempts < task.MaxAttempts {
      status = types.TaskStatusPending
      retried = true
    }
    return txx.Model(&types.GenerationTask{}).
      Where("id = ?", id).
      Updates(map[string]interface{}{
        "status":        status,
        "error_message": errMsg,
        "updated_at":    now,
      }).Error
  })
  if err != nil {
    return false, err
  }
  return retried, nil
}

func (r *generationTaskRepo) ResetStaleProcessing(ctx context.Context, tx *gorm.DB, grace time.Duration) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  cutoff := time.Now().Add(-grace)
  res := transaction.WithContext(ctx).
    Model(&types.GenerationTask{}).
    Where("status = ? AND processing_started_at IS NOT NULL AND processing_started_at < ?", types.TaskStatusProcessing, cutoff).
    Updates(map[string]interface{}{
      "status":     types.TaskStatusPending,
      "updated_at": time.Now(),
    })
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}

func (r *generationTaskRepo) PurgeFinishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  res := transaction.WithContext(ctx).
    Where("status IN ? AND updated_at < ?", []string{types.TaskStatusCompleted, types.TaskStatusFailed}, cutoff).
    Delete(&types.GenerationTask{})
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}
