package services

import (
  "context"
  "sort"
  "sync"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// In-memory repo fakes for service scenario tests. They mirror the store's
// conditional-update semantics (CAS completion, single unlock, uniqueness)
// closely enough to exercise the services' invariants without Postgres.

type fakeStore struct {
  mu sync.Mutex

  modules    map[uuid.UUID]*types.Module
  topics     map[uuid.UUID]*types.Topic
  contents   map[uuid.UUID]*types.ContentItem
  evals      map[uuid.UUID]*types.Evaluation
  profiles   map[uuid.UUID]*types.StudentProfileRecord
  versions   []*types.ModuleVersion
  vmodules   map[uuid.UUID]*types.VirtualModule
  vtopics    map[uuid.UUID]*types.VirtualTopic
  vcontents  map[uuid.UUID]*types.VirtualContent
  tasks      map[uuid.UUID]*types.GenerationTask
  syncEvents map[uuid.UUID][]types.ModuleUpdateEvent
}

func newFakeStore() *fakeStore {
  return &fakeStore{
    modules:    map[uuid.UUID]*types.Module{},
    topics:     map[uuid.UUID]*types.Topic{},
    contents:   map[uuid.UUID]*types.ContentItem{},
    evals:      map[uuid.UUID]*types.Evaluation{},
    profiles:   map[uuid.UUID]*types.StudentProfileRecord{},
    vmodules:   map[uuid.UUID]*types.VirtualModule{},
    vtopics:    map[uuid.UUID]*types.VirtualTopic{},
    vcontents:  map[uuid.UUID]*types.VirtualContent{},
    tasks:      map[uuid.UUID]*types.GenerationTask{},
    syncEvents: map[uuid.UUID][]types.ModuleUpdateEvent{},
  }
}

func (s *fakeStore) addModule(name string) *types.Module {
  m := &types.Module{ID: uuid.New(), StudyPlanID: uuid.New(), Name: name}
  s.modules[m.ID] = m
  return m
}

func (s *fakeStore) addTopic(moduleID uuid.UUID, name string, published bool) *types.Topic {
  t := &types.Topic{
    ID:        uuid.New(),
    ModuleID:  moduleID,
    Name:      name,
    Published: published,
    CreatedAt: time.Now().Add(time.Duration(len(s.topics)) * time.Second),
  }
  s.topics[t.ID] = t
  return t
}

func (s *fakeStore) addContent(topicID uuid.UUID, contentType string, order float64) *types.ContentItem {
  o := order
  c := &types.ContentItem{
    ID:          uuid.New(),
    TopicID:     topicID,
    ContentType: contentType,
    Status:      types.ContentStatusActive,
    Order:       &o,
  }
  s.contents[c.ID] = c
  return c
}

// --- ModuleRepo ---

type fakeModuleRepo struct{ s *fakeStore }

func (r *fakeModuleRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Module, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.Module
  for _, id := range ids {
    if m, ok := r.s.modules[id]; ok {
      out = append(out, m)
    }
  }
  return out, nil
}

// --- TopicRepo ---

type fakeTopicRepo struct{ s *fakeStore }

func (r *fakeTopicRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.Topic, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.Topic
  for _, id := range ids {
    if t, ok := r.s.topics[id]; ok {
      out = append(out, t)
    }
  }
  return out, nil
}

func (r *fakeTopicRepo) ListPublishedByModuleID(_ context.Context, _ *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.Topic
  for _, t := range r.s.topics {
    if t.ModuleID == moduleID && t.Published {
      out = append(out, t)
    }
  }
  sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
  return out, nil
}

func (r *fakeTopicRepo) CountPublishedByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (int64, error) {
  out, _ := r.ListPublishedByModuleID(ctx, tx, moduleID)
  return int64(len(out)), nil
}

// --- ContentItemRepo ---

type fakeContentItemRepo struct{ s *fakeStore }

func (r *fakeContentItemRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.ContentItem, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.ContentItem
  for _, id := range ids {
    if c, ok := r.s.contents[id]; ok {
      out = append(out, c)
    }
  }
  return out, nil
}

func (r *fakeContentItemRepo) ListEligibleByTopicID(_ context.Context, _ *gorm.DB, topicID uuid.UUID) ([]*types.ContentItem, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.ContentItem
  for _, c := range r.s.contents {
    if c.TopicID == topicID && (c.Status == types.ContentStatusActive || c.Status == types.ContentStatusApproved) {
      out = append(out, c)
    }
  }
  sort.Slice(out, func(i, j int) bool {
    oi, oj := out[i].Order, out[j].Order
    if oi == nil {
      return false
    }
    if oj == nil {
      return true
    }
    return *oi < *oj
  })
  return out, nil
}

// --- EvaluationRepo ---

type fakeEvaluationRepo struct{ s *fakeStore }

func (r *fakeEvaluationRepo) ListByModuleID(_ context.Context, _ *gorm.DB, moduleID uuid.UUID) ([]*types.Evaluation, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.Evaluation
  for _, e := range r.s.evals {
    if e.ModuleID == moduleID {
      out = append(out, e)
    }
  }
  return out, nil
}

// --- StudentProfileRepo ---

type fakeStudentProfileRepo struct{ s *fakeStore }

func (r *fakeStudentProfileRepo) GetByStudentID(_ context.Context, _ *gorm.DB, studentID uuid.UUID) (*types.StudentProfileRecord, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  return r.s.profiles[studentID], nil
}

// --- ModuleVersionRepo ---

type fakeModuleVersionRepo struct{ s *fakeStore }

func (r *fakeModuleVersionRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.ModuleVersion) ([]*types.ModuleVersion, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, row := range rows {
    if row.ID == uuid.Nil {
      row.ID = uuid.New()
    }
    row.CreatedAt = time.Now().Add(time.Duration(len(r.s.versions)) * time.Millisecond)
    r.s.versions = append(r.s.versions, row)
  }
  return rows, nil
}

func (r *fakeModuleVersionRepo) GetLatestByModuleID(_ context.Context, _ *gorm.DB, moduleID uuid.UUID) (*types.ModuleVersion, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var latest *types.ModuleVersion
  for _, v := range r.s.versions {
    if v.ModuleID != moduleID {
      continue
    }
    if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
      latest = v
    }
  }
  return latest, nil
}

// --- VirtualModuleRepo ---

type fakeVirtualModuleRepo struct{ s *fakeStore }

func (r *fakeVirtualModuleRepo) CreateIfAbsent(_ context.Context, _ *gorm.DB, row *types.VirtualModule) (*types.VirtualModule, bool, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, existing := range r.s.vmodules {
    if existing.ModuleID == row.ModuleID && existing.StudentID == row.StudentID {
      return existing, false, nil
    }
  }
  row.ID = uuid.New()
  if row.GenerationStatus == "" {
    row.GenerationStatus = types.GenerationStatusPending
  }
  if row.CompletionStatus == "" {
    row.CompletionStatus = types.CompletionNotStarted
  }
  r.s.vmodules[row.ID] = row
  return row, true, nil
}

func (r *fakeVirtualModuleRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.VirtualModule, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.VirtualModule
  for _, id := range ids {
    if m, ok := r.s.vmodules[id]; ok {
      out = append(out, m)
    }
  }
  return out, nil
}

func (r *fakeVirtualModuleRepo) GetByStudentAndModule(_ context.Context, _ *gorm.DB, studentID, moduleID uuid.UUID) (*types.VirtualModule, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, m := range r.s.vmodules {
    if m.StudentID == studentID && m.ModuleID == moduleID {
      return m, nil
    }
  }
  return nil, nil
}

func (r *fakeVirtualModuleRepo) ListByModuleID(_ context.Context, _ *gorm.DB, moduleID uuid.UUID) ([]*types.VirtualModule, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.VirtualModule
  for _, m := range r.s.vmodules {
    if m.ModuleID == moduleID {
      out = append(out, m)
    }
  }
  return out, nil
}

func (r *fakeVirtualModuleRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  m, ok := r.s.vmodules[id]
  if !ok {
    return apperr.NotFound("virtual module %s", id)
  }
  for k, v := range updates {
    switch k {
    case "generation_status":
      m.GenerationStatus = v.(string)
    case "generation_progress":
      m.GenerationProgress = v.(int)
    case "progress":
      m.Progress = v.(float64)
    case "completion_status":
      m.CompletionStatus = v.(string)
    case "completed_at":
      t := v.(time.Time)
      m.CompletedAt = &t
    }
  }
  return nil
}

func (r *fakeVirtualModuleRepo) AppendSyncEvent(_ context.Context, _ *gorm.DB, id uuid.UUID, event types.ModuleUpdateEvent) error {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  m, ok := r.s.vmodules[id]
  if !ok {
    return apperr.NotFound("virtual module %s", id)
  }
  r.s.syncEvents[id] = append(r.s.syncEvents[id], event)
  now := time.Now()
  m.LastSyncDate = &now
  m.SyncCount++
  return nil
}

func (r *fakeVirtualModuleRepo) TouchActivity(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  if m, ok := r.s.vmodules[id]; ok {
    now := time.Now()
    m.LastActivityAt = &now
  }
  return nil
}

// --- VirtualTopicRepo ---

type fakeVirtualTopicRepo struct{ s *fakeStore }

func (r *fakeVirtualTopicRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.VirtualTopic) ([]*types.VirtualTopic, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, row := range rows {
    for _, existing := range r.s.vtopics {
      if existing.VirtualModuleID == row.VirtualModuleID && existing.TopicID == row.TopicID {
        return nil, apperr.Conflict("virtual topic for topic %s", row.TopicID)
      }
    }
    row.ID = uuid.New()
    r.s.vtopics[row.ID] = row
  }
  return rows, nil
}

func (r *fakeVirtualTopicRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.VirtualTopic, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.VirtualTopic
  for _, id := range ids {
    if t, ok := r.s.vtopics[id]; ok {
      out = append(out, t)
    }
  }
  return out, nil
}

func (r *fakeVirtualTopicRepo) ListByVirtualModuleID(_ context.Context, _ *gorm.DB, virtualModuleID uuid.UUID) ([]*types.VirtualTopic, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.VirtualTopic
  for _, t := range r.s.vtopics {
    if t.VirtualModuleID == virtualModuleID {
      out = append(out, t)
    }
  }
  sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
  return out, nil
}

func (r *fakeVirtualTopicRepo) GetByModuleAndTopic(_ context.Context, _ *gorm.DB, virtualModuleID, topicID uuid.UUID) (*types.VirtualTopic, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, t := range r.s.vtopics {
    if t.VirtualModuleID == virtualModuleID && t.TopicID == topicID {
      return t, nil
    }
  }
  return nil, nil
}

func (r *fakeVirtualTopicRepo) CountByVirtualModuleID(_ context.Context, _ *gorm.DB, virtualModuleID uuid.UUID) (int64, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var n int64
  for _, t := range r.s.vtopics {
    if t.VirtualModuleID == virtualModuleID {
      n++
    }
  }
  return n, nil
}

func (r *fakeVirtualTopicRepo) UpdateProgress(_ context.Context, _ *gorm.DB, id uuid.UUID, progress float64) error {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  t, ok := r.s.vtopics[id]
  if !ok {
    return apperr.NotFound("virtual topic %s", id)
  }
  if t.Status.Terminal() {
    return nil
  }
  t.Progress = progress
  if progress > 0 {
    t.CompletionStatus = types.CompletionInProgress
  }
  return nil
}

func (r *fakeVirtualTopicRepo) CompleteActive(_ context.Context, _ *gorm.DB, id uuid.UUID) (bool, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  t, ok := r.s.vtopics[id]
  if !ok || t.Status != types.TopicStatusActive {
    return false, nil
  }
  t.Status = types.TopicStatusCompleted
  t.Locked = false
  t.Progress = 100
  t.CompletionStatus = types.CompletionCompleted
  return true, nil
}

func (r *fakeVirtualTopicRepo) UnlockNextLocked(_ context.Context, _ *gorm.DB, virtualModuleID uuid.UUID) (*types.VirtualTopic, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var next *types.VirtualTopic
  for _, t := range r.s.vtopics {
    if t.VirtualModuleID != virtualModuleID || t.Status != types.TopicStatusLocked {
      continue
    }
    if next == nil || t.Order < next.Order {
      next = t
    }
  }
  if next == nil {
    return nil, nil
  }
  next.Status = types.TopicStatusActive
  next.Locked = false
  return next, nil
}

func (r *fakeVirtualTopicRepo) ArchiveByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) error {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, id := range ids {
    t, ok := r.s.vtopics[id]
    if !ok {
      continue
    }
    if t.Status == types.TopicStatusLocked || t.Status == types.TopicStatusActive {
      t.Status = types.TopicStatusArchived
      t.Locked = true
    }
  }
  return nil
}

func (r *fakeVirtualTopicRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  if _, ok := r.s.vtopics[id]; !ok {
    return apperr.NotFound("virtual topic %s", id)
  }
  return nil
}

// --- VirtualContentRepo ---

type fakeVirtualContentRepo struct{ s *fakeStore }

func (r *fakeVirtualContentRepo) Create(_ context.Context, _ *gorm.DB, rows []*types.VirtualContent) ([]*types.VirtualContent, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, row := range rows {
    row.ID = uuid.New()
    if row.Status == "" {
      row.Status = types.VirtualContentStatusActive
    }
    r.s.vcontents[row.ID] = row
  }
  return rows, nil
}

func (r *fakeVirtualContentRepo) ListByVirtualTopicID(_ context.Context, _ *gorm.DB, virtualTopicID uuid.UUID) ([]*types.VirtualContent, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.VirtualContent
  for _, c := range r.s.vcontents {
    if c.VirtualTopicID == virtualTopicID {
      out = append(out, c)
    }
  }
  sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
  return out, nil
}

func (r *fakeVirtualContentRepo) ListActiveByVirtualTopicID(ctx context.Context, tx *gorm.DB, virtualTopicID uuid.UUID) ([]*types.VirtualContent, error) {
  all, _ := r.ListByVirtualTopicID(ctx, tx, virtualTopicID)
  var out []*types.VirtualContent
  for _, c := range all {
    if c.Status == types.VirtualContentStatusActive {
      out = append(out, c)
    }
  }
  return out, nil
}

func (r *fakeVirtualContentRepo) ArchiveByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) error {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, id := range ids {
    if c, ok := r.s.vcontents[id]; ok {
      c.Status = types.VirtualContentStatusArchived
    }
  }
  return nil
}

// --- GenerationTaskRepo ---

type fakeGenerationTaskRepo struct{ s *fakeStore }

func (r *fakeGenerationTaskRepo) CreateIfNoInFlight(_ context.Context, _ *gorm.DB, task *types.GenerationTask) (*types.GenerationTask, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  for _, existing := range r.s.tasks {
    if existing.StudentID == task.StudentID && existing.ModuleID == task.ModuleID && existing.InFlight() {
      return nil, apperr.Conflict("task already in flight for student %s module %s", task.StudentID, task.ModuleID)
    }
  }
  task.ID = uuid.New()
  if task.Status == "" {
    task.Status = types.TaskStatusPending
  }
  task.CreatedAt = time.Now().Add(time.Duration(len(r.s.tasks)) * time.Millisecond)
  r.s.tasks[task.ID] = task
  return task, nil
}

func (r *fakeGenerationTaskRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.GenerationTask, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var out []*types.GenerationTask
  for _, id := range ids {
    if t, ok := r.s.tasks[id]; ok {
      out = append(out, t)
    }
  }
  return out, nil
}

func (r *fakeGenerationTaskRepo) ClaimNextBatch(_ context.Context, _ *gorm.DB, limit int, budget time.Duration) ([]*types.GenerationTask, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var pending []*types.GenerationTask
  for _, t := range r.s.tasks {
    if t.Status == types.TaskStatusPending && t.Attempts < t.MaxAttempts {
      pending = append(pending, t)
    }
  }
  sort.Slice(pending, func(i, j int) bool {
    if pending[i].Priority != pending[j].Priority {
      return pending[i].Priority < pending[j].Priority
    }
    return pending[i].CreatedAt.Before(pending[j].CreatedAt)
  })

  var claimed []*types.GenerationTask
  remaining := budget
  for _, t := range pending {
    if len(claimed) >= limit {
      break
    }
    cost := time.Duration(t.EstimatedDurationS) * time.Second
    if cost > remaining {
      continue
    }
    remaining -= cost
    now := time.Now()
    t.Status = types.TaskStatusProcessing
    t.Attempts++
    t.ProcessingStartedAt = &now
    claimed = append(claimed, t)
  }
  return claimed, nil
}

func (r *fakeGenerationTaskRepo) MarkCompleted(_ context.Context, _ *gorm.DB, id uuid.UUID, _ map[string]interface{}) error {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  t, ok := r.s.tasks[id]
  if !ok || t.Status != types.TaskStatusProcessing {
    return apperr.InvalidState("task %s is not processing", id)
  }
  now := time.Now()
  t.Status = types.TaskStatusCompleted
  t.CompletedAt = &now
  return nil
}

func (r *fakeGenerationTaskRepo) MarkFailed(_ context.Context, _ *gorm.DB, id uuid.UUID, errMsg string) (bool, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  t, ok := r.s.tasks[id]
  if !ok {
    return false, apperr.NotFound("task %s", id)
  }
  t.ErrorMessage = errMsg
  if t.Attempts < t.MaxAttempts {
    t.Status = types.TaskStatusPending
    return true, nil
  }
  now := time.Now()
  t.Status = types.TaskStatusFailed
  t.CompletedAt = &now
  return false, nil
}

func (r *fakeGenerationTaskRepo) ResetStaleProcessing(_ context.Context, _ *gorm.DB, grace time.Duration) (int64, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var n int64
  cutoff := time.Now().Add(-grace)
  for _, t := range r.s.tasks {
    if t.Status == types.TaskStatusProcessing && t.ProcessingStartedAt != nil && t.ProcessingStartedAt.Before(cutoff) {
      t.Status = types.TaskStatusPending
      n++
    }
  }
  return n, nil
}

func (r *fakeGenerationTaskRepo) PurgeFinishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
  r.s.mu.Lock()
  defer r.s.mu.Unlock()
  var n int64
  for id, t := range r.s.tasks {
    finished := t.Status == types.TaskStatusCompleted || t.Status == types.TaskStatusFailed
    if finished && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
      delete(r.s.tasks, id)
      n++
    }
  }
  return n, nil
}
