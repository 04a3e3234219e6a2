package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// ContentItemRepo is read-only: content items belong to the instructor-facing
// CRUD layer.
type ContentItemRepo interface {
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ContentItem, error)
  // ListEligibleByTopicID returns content in publishable statuses, ordered by
  // the instructor's order (missing order sorts last).
  ListEligibleByTopicID(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) ([]*types.ContentItem, error)
}

type contentItemRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewContentItemRepo(db *gorm.DB, baseLog *logger.Logger) ContentItemRepo {
  repoLog := baseLog.With("repo", "ContentItemRepo")
  return &contentItemRepo{db: db, log: repoLog}
}

func (r *contentItemRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ContentItem, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.ContentItem
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

func (r *contentItemRepo) ListEligibleByTopicID(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) ([]*types.ContentItem, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.ContentItem
  if topicID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("topic_id = ? AND status IN ?", topicID, []string{types.ContentStatusActive, types.ContentStatusApproved}).
    Order("order_index ASC NULLS LAST").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
