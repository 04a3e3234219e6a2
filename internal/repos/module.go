package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// ModuleRepo is read-only: modules belong to the instructor-facing CRUD layer.
type ModuleRepo interface {
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Module, error)
}

type moduleRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewModuleRepo(db *gorm.DB, baseLog *logger.Logger) ModuleRepo {
  repoLog := baseLog.With("repo", "ModuleRepo")
  return &moduleRepo{db: db, log: repoLog}
}

func (r *moduleRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Module, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Module
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
