package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

type VirtualTopicRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.VirtualTopic) ([]*types.VirtualTopic, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.VirtualTopic, error)
  // ListByVirtualModuleID returns all rows (archived included) in assignment order.
  ListByVirtualModuleID(ctx context.Context, tx *gorm.DB, virtualModuleID uuid.UUID) ([]*types.VirtualTopic, error)
  GetByModuleAndTopic(ctx context.Context, tx *gorm.DB, virtualModuleID, topicID uuid.UUID) (*types.VirtualTopic, error)
  // CountByVirtualModuleID counts every row ever assigned, archived included;
  // the order field is monotonic and never reused.
  CountByVirtualModuleID(ctx context.Context, tx *gorm.DB, virtualModuleID uuid.UUID) (int64, error)
  UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress float64) error
  // CompleteActive moves the topic Active -> Completed; a no-op returning false
  // when the topic is not currently active. Single conditional update.
  CompleteActive(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
  // UnlockNextLocked promotes the earliest locked topic of the module to
  // active. Claim-style: the select and the conditional update run in one
  // transaction so two concurrent progress events cannot unlock two topics.
  UnlockNextLocked(ctx context.Context, tx *gorm.DB, virtualModuleID uuid.UUID) (*types.VirtualTopic, error)
  ArchiveByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type virtualTopicRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewVirtualTopicRepo(db *gorm.DB, baseLog *logger.Logger) VirtualTopicRepo {
  repoLog := baseLog.With("repo", "VirtualTopicRepo")
  return &virtualTopicRepo{db: db, log: repoLog}
}

func (r *virtualTopicRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.VirtualTopic) ([]*types.VirtualTopic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.VirtualTopic{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *virtualTopicRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.VirtualTopic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.VirtualTopic
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

func (r *virtualTopicRepo) ListByVirtualModuleID(ctx context.Context, tx *gorm.DB, virtualModuleID uuid.UUID) ([]*types.VirtualTopic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.VirtualTopic
  if virtualModuleID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("virtual_module_id = ?", virtualModuleID).
    Order("order_index ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *virtualTopicRepo) GetByModuleAndTopic(ctx context.Context, tx *gorm.DB, virtualModuleID, topicID uuid.UUID) (*types.VirtualTopic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if virtualModuleID == uuid.Nil || topicID == uuid.Nil {
    return nil, nil
  }

  var row types.VirtualTopic
  err := transaction.WithContext(ctx).
    Where("virtual_module_id = ? AND topic_id = ?", virtualModuleID, topicID).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *virtualTopicRepo) CountByVirtualModuleID(ctx context.Context, tx *gorm.DB, virtualModuleID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if virtualModuleID == uuid.Nil {
    return 0, nil
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.VirtualTopic{}).
    Where("virtual_module_id = ?", virtualModuleID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

func (r *virtualTopicRepo) UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress float64) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }

  updates := map[string]interface{}{
    "progress":   progress,
    "updated_at": time.Now(),
  }
  if progress > 0 {
    updates["completion_status"] = types.CompletionInProgress
  }
  // Progress only moves on non-terminal topics.
  return transaction.WithContext(ctx).
    Model(&types.VirtualTopic{}).
    Where("id = ? AND status IN ?", id, []types.TopicStatus{types.TopicStatusLocked, types.TopicStatusActive}).
    Updates(updates).Error
}

func (r *virtualTopicRepo) CompleteActive(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return false, nil
  }

  res := transaction.WithContext(ctx).
    Model(&types.VirtualTopic{}).
    Where("id = ? AND status = ?", id, types.TopicStatusActive).
    Updates(map[string]interface{}{
      "status":            types.TopicStatusCompleted,
      "completion_status": types.CompletionCompleted,
      "progress":          100,
      "updated_at":        time.Now(),
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *virtualTopicRepo) UnlockNextLocked(ctx context.Context, tx *gorm.DB, virtualModuleID uuid.UUID) (*types.VirtualTopic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if virtualModuleID == uuid.Nil {
    return nil, nil
  }

  var unlocked *types.VirtualTopic

  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var row types.VirtualTopic

    qErr := txx.
      Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
      Where("virtual_module_id = ? AND status = ?", virtualModuleID, types.TopicStatusLocked).
      Order("order_index ASC").
      First(&row).Error
    if errors.Is(qErr, gorm.ErrRecordNotFound) {
      return nil
    }
    if qErr != nil {
      return qErr
    }

    res := txx.Model(&types.VirtualTopic{}).
      Where("id = ? AND status = ?", row.ID, types.TopicStatusLocked).
      Updates(map[string]interface{}{
        "status":     types.TopicStatusActive,
        "locked":     false,
        "updated_at": time.Now(),
      })
    if res.Error != nil {
      return res.Error
    }
    if res.RowsAffected == 0 {
      return nil
    }

    row.Status = types.TopicStatusActive
    row.Locked = false
    unlocked = &row
    return nil
  })

  if err != nil {
    return nil, err
  }
  return unlocked, nil
}

func (r *virtualTopicRepo) ArchiveByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(ids) == 0 {
    return nil
  }

  // Archived is terminal; completed topics stay completed.
  return transaction.WithContext(ctx).
    Model(&types.VirtualTopic{}).
    Where("id IN ? AND status IN ?", ids, []types.TopicStatus{types.TopicStatusLocked, types.TopicStatusActive}).
    Updates(map[string]interface{}{
      "status":     types.TopicStatusArchived,
      "locked":     true,
      "updated_at": time.Now(),
    }).Error
}

func (r *virtualTopicRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  if updates == nil {
    updates = map[string]interface{}{}
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.VirtualTopic{}).
    Where("id = ?", id).
    Updates(updates).Error
}
