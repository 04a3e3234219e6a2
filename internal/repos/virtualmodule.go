package repos

import (
  "context"
  "encoding/json"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

type VirtualModuleRepo interface {
  // CreateIfAbsent inserts the row unless one already exists for the same
  // (module, student) pair, and returns the surviving row plus whether this
  // call created it. The unique index makes the check race-safe.
  CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.VirtualModule) (*types.VirtualModule, bool, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.VirtualModule, error)
  GetByStudentAndModule(ctx context.Context, tx *gorm.DB, studentID, moduleID uuid.UUID) (*types.VirtualModule, error)
  // ListByModuleID returns every student's materialization of the module.
  ListByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.VirtualModule, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  // AppendSyncEvent appends one event to the module's update log and bumps the
  // sync bookkeeping in a single atomic update.
  AppendSyncEvent(ctx context.Context, tx *gorm.DB, id uuid.UUID, event types.ModuleUpdateEvent) error
  TouchActivity(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type virtualModuleRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewVirtualModuleRepo(db *gorm.DB, baseLog *logger.Logger) VirtualModuleRepo {
  repoLog := baseLog.With("repo", "VirtualModuleRepo")
  return &virtualModuleRepo{db: db, log: repoLog}
}

func (r *virtualModuleRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.VirtualModule) (*types.VirtualModule, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if row == nil {
    return nil, false, nil
  }

  res := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "module_id"}, {Name: "student_id"}},
      DoNothing: true,
    }).
    Create(row)
  if res.Error != nil {
    return nil, false, res.Error
  }
  if res.RowsAffected > 0 {
    return row, true, nil
  }

  existing, err := r.GetByStudentAndModule(ctx, transaction, row.StudentID, row.ModuleID)
  if err != nil {
    return nil, false, err
  }
  return existing, false, nil
}

func (r *virtualModuleRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.VirtualModule, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.VirtualModule
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

func (r *virtualModuleRepo) ListByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.VirtualModule, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.VirtualModule
  if moduleID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("module_id = ?", moduleID).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *virtualModuleRepo) GetByStudentAndModule(ctx context.Context, tx *gorm.DB, studentID, moduleID uuid.UUID) (*types.VirtualModule, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if studentID == uuid.Nil || moduleID == uuid.Nil {
    return nil, nil
  }

  var row types.VirtualModule
  err := transaction.WithContext(ctx).
    Where("student_id = ? AND module_id = ?", studentID, moduleID).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *virtualModuleRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
    Model(&types.VirtualModule{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *virtualModuleRepo) AppendSyncEvent(ctx context.Context, tx *gorm.DB, id uuid.UUID, event types.ModuleUpdateEvent) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }

  raw, err := json.Marshal([]types.ModuleUpdateEvent{event})
  if err != nil {
    return err
  }

  now := time.Now()
  return transaction.WithContext(ctx).Exec(`
    UPDATE "virtual_module"
    SET update_log = COALESCE(update_log, '[]'::jsonb) || ?::jsonb,
        last_sync_date = ?,
        sync_count = sync_count + 1,
        updated_at = ?
    WHERE id = ?
  `, string(raw), now, now, id).Error
}

func (r *virtualModuleRepo) TouchActivity(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  now := time.Now()
  return transaction.WithContext(ctx).
    Model(&types.VirtualModule{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "last_activity_at": now,
      "updated_at":       now,
    }).Error
}
