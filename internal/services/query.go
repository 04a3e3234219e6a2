package services

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// VirtualTopicView is one topic with its active contents, in study order.
type VirtualTopicView struct {
  Topic    *types.VirtualTopic     `json:"topic"`
  Contents []*types.VirtualContent `json:"contents"`
}

// VirtualModuleView is the student-facing snapshot of a virtual module.
type VirtualModuleView struct {
  Module *types.VirtualModule `json:"module"`
  Topics []VirtualTopicView   `json:"topics"`
}

type VirtualModuleQueryService interface {
  // GetView assembles the student's current snapshot of the module: the
  // module row, its non-archived topics in order, and each topic's active
  // contents.
  GetView(ctx context.Context, studentID, moduleID uuid.UUID) (*VirtualModuleView, error)
  // CheckTopicBalance runs the advisory balance diagnostic over one virtual
  // topic's active contents against the topic's eligible originals.
  CheckTopicBalance(ctx context.Context, virtualTopicID uuid.UUID) (*BalanceReport, error)
}

type virtualModuleQueryService struct {
  db          *gorm.DB
  log         *logger.Logger
  selector    *ContentSelector
  contentRepo repos.ContentItemRepo
  vmoduleRepo repos.VirtualModuleRepo
  vtopicRepo  repos.VirtualTopicRepo
  vcontent    repos.VirtualContentRepo
}

func NewVirtualModuleQueryService(
  db *gorm.DB,
  baseLog *logger.Logger,
  selector *ContentSelector,
  contentRepo repos.ContentItemRepo,
  vmoduleRepo repos.VirtualModuleRepo,
  vtopicRepo repos.VirtualTopicRepo,
  vcontent repos.VirtualContentRepo,
) VirtualModuleQueryService {
  return &virtualModuleQueryService{
    db:          db,
    log:         baseLog.With("service", "VirtualModuleQueryService"),
    selector:    selector,
    contentRepo: contentRepo,
    vmoduleRepo: vmoduleRepo,
    vtopicRepo:  vtopicRepo,
    vcontent:    vcontent,
  }
}

func (s *virtualModuleQueryService) GetView(ctx context.Context, studentID, moduleID uuid.UUID) (*VirtualModuleView, error) {
  vmod, err := s.vmoduleRepo.GetByStudentAndModule(ctx, nil, studentID, moduleID)
  if err != nil {
    return nil, err
  }
  if vmod == nil {
    return nil, apperr.NotFound("virtual module for student %s module %s", studentID, moduleID)
  }

  vtopics, err := s.vtopicRepo.ListByVirtualModuleID(ctx, nil, vmod.ID)
  if err != nil {
    return nil, err
  }

  view := &VirtualModuleView{Module: vmod}
  for _, vt := range vtopics {
    if vt.Status == types.TopicStatusArchived {
      continue
    }
    contents, err := s.vcontent.ListActiveByVirtualTopicID(ctx, nil, vt.ID)
    if err != nil {
      return nil, err
    }
    view.Topics = append(view.Topics, VirtualTopicView{Topic: vt, Contents: contents})
  }
  return view, nil
}

func (s *virtualModuleQueryService) CheckTopicBalance(ctx context.Context, virtualTopicID uuid.UUID) (*BalanceReport, error) {
  vts, err := s.vtopicRepo.GetByIDs(ctx, nil, []uuid.UUID{virtualTopicID})
  if err != nil {
    return nil, err
  }
  if len(vts) == 0 {
    return nil, apperr.NotFound("virtual topic %s", virtualTopicID)
  }
  vt := vts[0]

  contents, err := s.vcontent.ListActiveByVirtualTopicID(ctx, nil, vt.ID)
  if err != nil {
    return nil, err
  }
  originals, err := s.contentRepo.ListEligibleByTopicID(ctx, nil, vt.TopicID)
  if err != nil {
    return nil, err
  }
  originalByID := make(map[uuid.UUID]*types.ContentItem, len(originals))
  for _, c := range originals {
    originalByID[c.ID] = c
  }

  selected := make([]SelectedContent, 0, len(contents))
  for _, vc := range contents {
    if vc.ContentID == nil {
      continue
    }
    item, ok := originalByID[*vc.ContentID]
    if !ok {
      continue
    }
    selected = append(selected, SelectedContent{Item: item, Order: vc.Order})
  }

  report := s.selector.ValidateBalance(selected, originals)
  return &report, nil
}
