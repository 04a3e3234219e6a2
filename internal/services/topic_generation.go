package services

import (
  "context"
  "encoding/json"
  "fmt"

  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// TopicGenerationOptions tunes one CreateVirtualTopic call.
type TopicGenerationOptions struct {
  // ForceLock overrides the first-topic-unlocked rule when non-nil. The
  // synchronizer uses it so mid-module additions never jump the queue.
  ForceLock *bool
  Prefs     Preferences
}

type TopicGenerationService interface {
  // CreateVirtualTopic materializes one topic for a student inside an existing
  // virtual module: it assigns the next order slot, decides the lock state,
  // persists the topic and then its selected, personalized contents. Callers
  // are responsible for not creating the same (module, topic) pair twice; the
  // unique index turns a lost race into an error rather than a duplicate.
  CreateVirtualTopic(
    ctx context.Context,
    tx *gorm.DB,
    vmod *types.VirtualModule,
    topic *types.Topic,
    profile types.CognitiveProfile,
    opts TopicGenerationOptions,
  ) (*types.VirtualTopic, error)
}

type topicGenerationService struct {
  db          *gorm.DB
  log         *logger.Logger
  selector    *ContentSelector
  vtopicRepo  repos.VirtualTopicRepo
  vcontent    repos.VirtualContentRepo
  contentRepo repos.ContentItemRepo
}

func NewTopicGenerationService(
  db *gorm.DB,
  baseLog *logger.Logger,
  selector *ContentSelector,
  vtopicRepo repos.VirtualTopicRepo,
  vcontent repos.VirtualContentRepo,
  contentRepo repos.ContentItemRepo,
) TopicGenerationService {
  return &topicGenerationService{
    db:          db,
    log:         baseLog.With("service", "TopicGenerationService"),
    selector:    selector,
    vtopicRepo:  vtopicRepo,
    vcontent:    vcontent,
    contentRepo: contentRepo,
  }
}

func (s *topicGenerationService) CreateVirtualTopic(
  ctx context.Context,
  tx *gorm.DB,
  vmod *types.VirtualModule,
  topic *types.Topic,
  profile types.CognitiveProfile,
  opts TopicGenerationOptions,
) (*types.VirtualTopic, error) {
  count, err := s.vtopicRepo.CountByVirtualModuleID(ctx, tx, vmod.ID)
  if err != nil {
    return nil, fmt.Errorf("count virtual topics: %w", err)
  }
  order := int(count)

  locked := order > 0
  if opts.ForceLock != nil {
    locked = *opts.ForceLock
  }
  status := types.TopicStatusActive
  if locked {
    status = types.TopicStatusLocked
  }

  adaptations, _ := json.Marshal(map[string]interface{}{
    "difficulty_adjustment": AdjustDifficulty(profile),
    "topic_difficulty":      topic.Difficulty,
  })

  vt := &types.VirtualTopic{
    TopicID:          topic.ID,
    VirtualModuleID:  vmod.ID,
    Order:            order,
    Adaptations:      datatypes.JSON(adaptations),
    Status:           status,
    Locked:           locked,
    Progress:         0,
    CompletionStatus: types.CompletionNotStarted,
  }
  created, err := s.vtopicRepo.Create(ctx, tx, []*types.VirtualTopic{vt})
  if err != nil {
    return nil, fmt.Errorf("create virtual topic: %w", err)
  }
  vt = created[0]

  if err := s.generateContents(ctx, tx, vt, vmod, profile, opts.Prefs); err != nil {
    // The topic row survives; the synchronizer's content diff fills the gap
    // on the next pass.
    s.log.Error("Failed to generate contents for virtual topic", "virtual_topic_id", vt.ID, "error", err)
    return vt, fmt.Errorf("generate contents: %w", err)
  }

  s.log.Info("Created virtual topic",
    "virtual_topic_id", vt.ID, "topic_id", topic.ID, "order", order, "locked", locked)
  return vt, nil
}

func (s *topicGenerationService) generateContents(
  ctx context.Context,
  tx *gorm.DB,
  vt *types.VirtualTopic,
  vmod *types.VirtualModule,
  profile types.CognitiveProfile,
  prefs Preferences,
) error {
  originals, err := s.contentRepo.ListEligibleByTopicID(ctx, tx, vt.TopicID)
  if err != nil {
    return fmt.Errorf("list eligible contents: %w", err)
  }
  if len(originals) == 0 {
    s.log.Warn("Topic has no eligible content", "topic_id", vt.TopicID)
    return nil
  }

  selected := s.selector.Select(originals, profile, prefs)
  rows := make([]*types.VirtualContent, 0, len(selected))
  for _, sel := range selected {
    item := sel.Item
    pd := BuildPersonalization(item, profile)
    pdJSON, err := json.Marshal(pd)
    if err != nil {
      return fmt.Errorf("serialize personalization: %w", err)
    }
    contentID := item.ID
    rows = append(rows, &types.VirtualContent{
      VirtualTopicID:      vt.ID,
      ContentID:           &contentID,
      StudentID:           vmod.StudentID,
      ContentType:         item.ContentType,
      Payload:             item.Payload,
      PersonalizationData: datatypes.JSON(pdJSON),
      Order:               sel.Order,
      Status:              types.VirtualContentStatusActive,
    })
  }
  if _, err := s.vcontent.Create(ctx, tx, rows); err != nil {
    return fmt.Errorf("create virtual contents: %w", err)
  }
  return nil
}
