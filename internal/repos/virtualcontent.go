package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

type VirtualContentRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.VirtualContent) ([]*types.VirtualContent, error)
  // ListByVirtualTopicID returns all rows (archived included) ordered by order.
  ListByVirtualTopicID(ctx context.Context, tx *gorm.DB, virtualTopicID uuid.UUID) ([]*types.VirtualContent, error)
  ListActiveByVirtualTopicID(ctx context.Context, tx *gorm.DB, virtualTopicID uuid.UUID) ([]*types.VirtualContent, error)
  ArchiveByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type virtualContentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewVirtualContentRepo(db *gorm.DB, baseLog *logger.Logger) VirtualContentRepo {
  repoLog := baseLog.With("repo", "VirtualContentRepo")
  return &virtualContentRepo{db: db, log: repoLog}
}

func (r *virtualContentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.VirtualContent) ([]*types.VirtualContent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(rows) == 0 {
    return []*types.VirtualContent{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *virtualContentRepo) ListByVirtualTopicID(ctx context.Context, tx *gorm.DB, virtualTopicID uuid.UUID) ([]*types.VirtualContent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.VirtualContent
  if virtualTopicID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("virtual_topic_id = ?", virtualTopicID).
    Order("order_index ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *virtualContentRepo) ListActiveByVirtualTopicID(ctx context.Context, tx *gorm.DB, virtualTopicID uuid.UUID) ([]*types.VirtualContent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.VirtualContent
  if virtualTopicID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("virtual_topic_id = ? AND status = ?", virtualTopicID, types.VirtualContentStatusActive).
    Order("order_index ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *virtualContentRepo) ArchiveByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(ids) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.VirtualContent{}).
    Where("id IN ? AND status = ?", ids, types.VirtualContentStatusActive).
    Updates(map[string]interface{}{
      "status":     types.VirtualContentStatusArchived,
      "updated_at": time.Now(),
    }).Error
}
