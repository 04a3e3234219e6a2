package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// ModuleVersionRepo persists the append-only fingerprint history per module.
type ModuleVersionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.ModuleVersion) ([]*types.ModuleVersion, error)
  GetLatestByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.ModuleVersion, error)
}

type moduleVersionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewModuleVersionRepo(db *gorm.DB, baseLog *logger.Logger) ModuleVersionRepo {
  repoLog := baseLog.With("repo", "ModuleVersionRepo")
  return &moduleVersionRepo{db: db, log: repoLog}
}

func (r *moduleVersionRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ModuleVersion) ([]*types.ModuleVersion, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.ModuleVersion{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *moduleVersionRepo) GetLatestByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.ModuleVersion, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if moduleID == uuid.Nil {
    return nil, nil
  }

  var row types.ModuleVersion
  err := transaction.WithContext(ctx).
    Where("module_id = ?", moduleID).
    Order("created_at DESC").
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}
