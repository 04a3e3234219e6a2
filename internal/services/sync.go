package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/sse"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// activityGate is how recently the student must have been active for a
// non-forced sync to be deferred. Interrupting someone mid-session with a
// reshuffled queue is worse than serving slightly stale content.
const activityGate = 30 * time.Minute

// SyncReport summarizes one synchronization pass.
type SyncReport struct {
  VirtualModuleID  uuid.UUID          `json:"virtual_module_id"`
  Skipped          bool               `json:"skipped"`
  SkipReason       string             `json:"skip_reason,omitempty"`
  TopicsAdded      int                `json:"topics_added"`
  TopicsArchived   int                `json:"topics_archived"`
  ContentsAdded    int                `json:"contents_added"`
  ContentsArchived int                `json:"contents_archived"`
  Errors           []apperr.ItemError `json:"errors,omitempty"`
}

type SyncService interface {
  // Synchronize reconciles one virtual module against the instructor's
  // current content: newly published topics are added locked, unpublished
  // ones archived, and each surviving topic's contents diffed the same way.
  // Nothing is hard-deleted. Per-item failures are collected in the report
  // and never abort the pass. Without force, a completed module or one the
  // student touched in the last 30 minutes is skipped.
  Synchronize(ctx context.Context, virtualModuleID uuid.UUID, force bool) (*SyncReport, error)
}

type syncService struct {
  db          *gorm.DB
  log         *logger.Logger
  profiles    ProfileService
  topicGen    TopicGenerationService
  notifier    EventNotifier
  topicRepo   repos.TopicRepo
  contentRepo repos.ContentItemRepo
  vmoduleRepo repos.VirtualModuleRepo
  vtopicRepo  repos.VirtualTopicRepo
  vcontent    repos.VirtualContentRepo
}

func NewSyncService(
  db *gorm.DB,
  baseLog *logger.Logger,
  profiles ProfileService,
  topicGen TopicGenerationService,
  notifier EventNotifier,
  topicRepo repos.TopicRepo,
  contentRepo repos.ContentItemRepo,
  vmoduleRepo repos.VirtualModuleRepo,
  vtopicRepo repos.VirtualTopicRepo,
  vcontent repos.VirtualContentRepo,
) SyncService {
  return &syncService{
    db:          db,
    log:         baseLog.With("service", "SyncService"),
    profiles:    profiles,
    topicGen:    topicGen,
    notifier:    notifier,
    topicRepo:   topicRepo,
    contentRepo: contentRepo,
    vmoduleRepo: vmoduleRepo,
    vtopicRepo:  vtopicRepo,
    vcontent:    vcontent,
  }
}

func (s *syncService) Synchronize(ctx context.Context, virtualModuleID uuid.UUID, force bool) (*SyncReport, error) {
  report := &SyncReport{VirtualModuleID: virtualModuleID}

  vmods, err := s.vmoduleRepo.GetByIDs(ctx, nil, []uuid.UUID{virtualModuleID})
  if err != nil {
    return nil, fmt.Errorf("load virtual module: %w", err)
  }
  if len(vmods) == 0 {
    return nil, apperr.NotFound("virtual module %s", virtualModuleID)
  }
  vmod := vmods[0]

  if !force {
    if vmod.CompletionStatus == types.CompletionCompleted {
      report.Skipped = true
      report.SkipReason = "module completed"
      return report, nil
    }
    if vmod.LastActivityAt != nil && time.Since(*vmod.LastActivityAt) < activityGate {
      report.Skipped = true
      report.SkipReason = "student recently active"
      s.log.Debug("Deferring sync, student recently active", "virtual_module_id", vmod.ID)
      return report, nil
    }
  }

  profile := s.profiles.GetCognitiveProfile(ctx, nil, vmod.StudentID)

  published, err := s.topicRepo.ListPublishedByModuleID(ctx, nil, vmod.ModuleID)
  if err != nil {
    return nil, fmt.Errorf("list published topics: %w", err)
  }
  vtopics, err := s.vtopicRepo.ListByVirtualModuleID(ctx, nil, vmod.ID)
  if err != nil {
    return nil, fmt.Errorf("list virtual topics: %w", err)
  }

  publishedByID := make(map[uuid.UUID]*types.Topic, len(published))
  for _, t := range published {
    publishedByID[t.ID] = t
  }
  haveTopic := make(map[uuid.UUID]*types.VirtualTopic, len(vtopics))
  for _, vt := range vtopics {
    if vt.Status != types.TopicStatusArchived {
      haveTopic[vt.TopicID] = vt
    }
  }

  // New topics come in locked regardless of queue state; the maintainer
  // decides when they surface.
  forceLock := true
  for _, t := range published {
    if _, ok := haveTopic[t.ID]; ok {
      continue
    }
    if _, err := s.topicGen.CreateVirtualTopic(ctx, nil, vmod, t, profile, TopicGenerationOptions{ForceLock: &forceLock}); err != nil {
      report.Errors = append(report.Errors, apperr.ItemError{ID: t.ID.String(), Stage: "add_topic", Reason: err.Error()})
      continue
    }
    report.TopicsAdded++
  }

  var staleTopicIDs []uuid.UUID
  for topicID, vt := range haveTopic {
    if _, ok := publishedByID[topicID]; ok {
      continue
    }
    if vt.Status.Terminal() {
      // Completed topics stay visible even after the original goes away.
      continue
    }
    staleTopicIDs = append(staleTopicIDs, vt.ID)
  }
  if len(staleTopicIDs) > 0 {
    if err := s.vtopicRepo.ArchiveByIDs(ctx, nil, staleTopicIDs); err != nil {
      report.Errors = append(report.Errors, apperr.ItemError{ID: vmod.ID.String(), Stage: "archive_topics", Reason: err.Error()})
    } else {
      report.TopicsArchived = len(staleTopicIDs)
    }
  }

  for topicID, vt := range haveTopic {
    if _, ok := publishedByID[topicID]; !ok {
      continue
    }
    added, archived, err := s.syncTopicContents(ctx, vmod, vt, profile)
    if err != nil {
      report.Errors = append(report.Errors, apperr.ItemError{ID: vt.ID.String(), Stage: "sync_contents", Reason: err.Error()})
      continue
    }
    report.ContentsAdded += added
    report.ContentsArchived += archived
  }

  if err := s.vmoduleRepo.AppendSyncEvent(ctx, nil, vmod.ID, types.ModuleUpdateEvent{
    Type:      types.UpdateEventContentSync,
    Timestamp: time.Now().UTC(),
    Details: map[string]interface{}{
      "topics_added":      report.TopicsAdded,
      "topics_archived":   report.TopicsArchived,
      "contents_added":    report.ContentsAdded,
      "contents_archived": report.ContentsArchived,
      "errors":            len(report.Errors),
      "forced":            force,
    },
  }); err != nil {
    report.Errors = append(report.Errors, apperr.ItemError{ID: vmod.ID.String(), Stage: "append_sync_event", Reason: err.Error()})
  }

  s.notifier.Notify(ctx, vmod.StudentID, sse.SSEEventModuleSynced, report)
  s.log.Info("Synchronized virtual module",
    "virtual_module_id", vmod.ID,
    "topics_added", report.TopicsAdded, "topics_archived", report.TopicsArchived,
    "contents_added", report.ContentsAdded, "contents_archived", report.ContentsArchived,
    "errors", len(report.Errors))
  return report, nil
}

// syncTopicContents diffs one virtual topic's contents against the topic's
// current eligible originals. Additions are appended after the existing queue;
// full reordering is the generator's job, not the synchronizer's.
func (s *syncService) syncTopicContents(
  ctx context.Context,
  vmod *types.VirtualModule,
  vt *types.VirtualTopic,
  profile types.CognitiveProfile,
) (added, archived int, err error) {
  originals, err := s.contentRepo.ListEligibleByTopicID(ctx, nil, vt.TopicID)
  if err != nil {
    return 0, 0, fmt.Errorf("list eligible contents: %w", err)
  }
  active, err := s.vcontent.ListActiveByVirtualTopicID(ctx, nil, vt.ID)
  if err != nil {
    return 0, 0, fmt.Errorf("list virtual contents: %w", err)
  }

  originalByID := make(map[uuid.UUID]*types.ContentItem, len(originals))
  for _, c := range originals {
    originalByID[c.ID] = c
  }
  haveContent := make(map[uuid.UUID]bool, len(active))
  maxOrder := 0.0
  var orphanIDs []uuid.UUID
  for _, vc := range active {
    if vc.Order > maxOrder {
      maxOrder = vc.Order
    }
    if vc.ContentID == nil {
      // Ephemeral content has no original to diff against.
      continue
    }
    haveContent[*vc.ContentID] = true
    if _, ok := originalByID[*vc.ContentID]; !ok {
      orphanIDs = append(orphanIDs, vc.ID)
    }
  }

  var newRows []*types.VirtualContent
  for _, c := range originals {
    if haveContent[c.ID] {
      continue
    }
    if c.ParentContentID != nil && *c.ParentContentID != c.ID {
      // Variants only enter through the selector's slide pairing.
      continue
    }
    pd := BuildPersonalization(c, profile)
    pdJSON, merr := json.Marshal(pd)
    if merr != nil {
      return added, archived, fmt.Errorf("serialize personalization: %w", merr)
    }
    maxOrder++
    contentID := c.ID
    newRows = append(newRows, &types.VirtualContent{
      VirtualTopicID:      vt.ID,
      ContentID:           &contentID,
      StudentID:           vmod.StudentID,
      ContentType:         c.ContentType,
      Payload:             c.Payload,
      PersonalizationData: datatypes.JSON(pdJSON),
      Order:               maxOrder,
      Status:              types.VirtualContentStatusActive,
    })
  }
  if len(newRows) > 0 {
    if _, err := s.vcontent.Create(ctx, nil, newRows); err != nil {
      return 0, 0, fmt.Errorf("create virtual contents: %w", err)
    }
    added = len(newRows)
  }
  if len(orphanIDs) > 0 {
    if err := s.vcontent.ArchiveByIDs(ctx, nil, orphanIDs); err != nil {
      return added, 0, fmt.Errorf("archive virtual contents: %w", err)
    }
    archived = len(orphanIDs)
  }
  return added, archived, nil
}
