package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// EvaluationRepo is read-only; the change detector folds evaluations into the
// module fingerprint.
type EvaluationRepo interface {
  ListByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Evaluation, error)
}

type evaluationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewEvaluationRepo(db *gorm.DB, baseLog *logger.Logger) EvaluationRepo {
  repoLog := baseLog.With("repo", "EvaluationRepo")
  return &evaluationRepo{db: db, log: repoLog}
}

func (r *evaluationRepo) ListByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Evaluation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Evaluation
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
