package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// TopicRepo is read-only: topics belong to the instructor-facing CRUD layer.
type TopicRepo interface {
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Topic, error)
  // ListPublishedByModuleID returns published topics ordered by creation time,
  // which is the virtualization order.
  ListPublishedByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error)
  CountPublishedByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (int64, error)
}

type topicRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
  repoLog := baseLog.With("repo", "TopicRepo")
  return &topicRepo{db: db, log: repoLog}
}

func (r *topicRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Topic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Topic
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

func (r *topicRepo) ListPublishedByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Topic
  if moduleID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("module_id = ? AND published = ?", moduleID, true).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *topicRepo) CountPublishedByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if moduleID == uuid.Nil {
    return 0, nil
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Topic{}).
    Where("module_id = ? AND published = ?", moduleID, true).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}
