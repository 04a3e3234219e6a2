package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

type StudentProfileRepo interface {
  // GetByStudentID returns nil without error when the student has no profile.
  GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) (*types.StudentProfileRecord, error)
}

type studentProfileRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewStudentProfileRepo(db *gorm.DB, baseLog *logger.Logger) StudentProfileRepo {
  repoLog := baseLog.With("repo", "StudentProfileRepo")
  return &studentProfileRepo{db: db, log: repoLog}
}

func (r *studentProfileRepo) GetByStudentID(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) (*types.StudentProfileRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if studentID == uuid.Nil {
    return nil, nil
  }

  var rec types.StudentProfileRecord
  err := transaction.WithContext(ctx).
    Where("student_id = ?", studentID).
    First(&rec).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &rec, nil
}
