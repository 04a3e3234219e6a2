package services

import (
  "context"
  "crypto/sha256"
  "encoding/hex"
  "encoding/json"
  "fmt"
  "sort"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// ChangeReport is the outcome of one change-detection pass over a module.
type ChangeReport struct {
  ModuleID   uuid.UUID `json:"module_id"`
  HasChanges bool      `json:"has_changes"`
  IsInitial  bool      `json:"is_initial"`
  Hash       string    `json:"hash"`
  // ErrorMarker is set when the module could not be fingerprinted; the report
  // still comes back with HasChanges=false so callers can proceed safely.
  ErrorMarker string `json:"error_marker,omitempty"`
}

type ChangeDetectionService interface {
  // DetectChanges fingerprints the module's current content and compares it
  // against the latest stored version. The first observation records the
  // baseline and reports IsInitial. A differing fingerprint appends a new
  // version row. Fingerprinting problems degrade to HasChanges=false with an
  // error marker; this method never fails the caller.
  DetectChanges(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ChangeReport
}

type changeDetectionService struct {
  db          *gorm.DB
  log         *logger.Logger
  moduleRepo  repos.ModuleRepo
  topicRepo   repos.TopicRepo
  evalRepo    repos.EvaluationRepo
  versionRepo repos.ModuleVersionRepo
}

func NewChangeDetectionService(
  db *gorm.DB,
  baseLog *logger.Logger,
  moduleRepo repos.ModuleRepo,
  topicRepo repos.TopicRepo,
  evalRepo repos.EvaluationRepo,
  versionRepo repos.ModuleVersionRepo,
) ChangeDetectionService {
  return &changeDetectionService{
    db:          db,
    log:         baseLog.With("service", "ChangeDetectionService"),
    moduleRepo:  moduleRepo,
    topicRepo:   topicRepo,
    evalRepo:    evalRepo,
    versionRepo: versionRepo,
  }
}

func (s *changeDetectionService) DetectChanges(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ChangeReport {
  report := ChangeReport{ModuleID: moduleID}

  hash, err := s.fingerprint(ctx, tx, moduleID)
  if err != nil {
    s.log.Warn("Failed to fingerprint module", "module_id", moduleID, "error", err)
    report.ErrorMarker = err.Error()
    return report
  }
  report.Hash = hash

  latest, err := s.versionRepo.GetLatestByModuleID(ctx, tx, moduleID)
  if err != nil {
    s.log.Warn("Failed to load latest module version", "module_id", moduleID, "error", err)
    report.ErrorMarker = err.Error()
    return report
  }

  if latest == nil {
    report.IsInitial = true
    if _, err := s.versionRepo.Create(ctx, tx, []*types.ModuleVersion{{
      ModuleID:     moduleID,
      Hash:         hash,
      ChangeMarker: "initial",
    }}); err != nil {
      s.log.Warn("Failed to record initial module version", "module_id", moduleID, "error", err)
      report.ErrorMarker = err.Error()
    }
    return report
  }

  if latest.Hash == hash {
    return report
  }

  report.HasChanges = true
  if _, err := s.versionRepo.Create(ctx, tx, []*types.ModuleVersion{{
    ModuleID:     moduleID,
    Hash:         hash,
    ChangeMarker: "content_changed",
  }}); err != nil {
    s.log.Warn("Failed to record module version", "module_id", moduleID, "error", err)
    report.ErrorMarker = err.Error()
  }
  s.log.Info("Module content changed", "module_id", moduleID, "hash", hash)
  return report
}

// moduleFingerprint is the canonical serialization the hash runs over. Field
// order is fixed and children are sorted by id so the same content always
// produces the same bytes.
type moduleFingerprint struct {
  Name             string                  `json:"name"`
  LearningOutcomes json.RawMessage         `json:"learning_outcomes"`
  EvaluationRubric json.RawMessage         `json:"evaluation_rubric"`
  Topics           []topicFingerprint      `json:"topics"`
  Evaluations      []evaluationFingerprint `json:"evaluations"`
}

type topicFingerprint struct {
  ID            string          `json:"id"`
  Name          string          `json:"name"`
  TheoryContent string          `json:"theory_content"`
  Difficulty    string          `json:"difficulty"`
  Resources     json.RawMessage `json:"resources"`
}

type evaluationFingerprint struct {
  ID          string          `json:"id"`
  Title       string          `json:"title"`
  Description string          `json:"description"`
  Criteria    json.RawMessage `json:"criteria"`
  Weight      float64         `json:"weight"`
}

func (s *changeDetectionService) fingerprint(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (string, error) {
  mods, err := s.moduleRepo.GetByIDs(ctx, tx, []uuid.UUID{moduleID})
  if err != nil {
    return "", fmt.Errorf("load module: %w", err)
  }
  if len(mods) == 0 {
    return "", fmt.Errorf("module %s not found", moduleID)
  }
  mod := mods[0]

  topics, err := s.topicRepo.ListPublishedByModuleID(ctx, tx, moduleID)
  if err != nil {
    return "", fmt.Errorf("list topics: %w", err)
  }
  evals, err := s.evalRepo.ListByModuleID(ctx, tx, moduleID)
  if err != nil {
    return "", fmt.Errorf("list evaluations: %w", err)
  }

  return FingerprintModule(mod, topics, evals)
}

// FingerprintModule computes the sha256 content fingerprint of a module and
// its published topics and evaluations. Exported so tests can assert hash
// stability without a store.
func FingerprintModule(mod *types.Module, topics []*types.Topic, evals []*types.Evaluation) (string, error) {
  fp := moduleFingerprint{
    Name:             mod.Name,
    LearningOutcomes: rawOrNull(mod.LearningOutcomes),
    EvaluationRubric: rawOrNull(mod.EvaluationRubric),
    Topics:           make([]topicFingerprint, 0, len(topics)),
    Evaluations:      make([]evaluationFingerprint, 0, len(evals)),
  }

  sorted := make([]*types.Topic, len(topics))
  copy(sorted, topics)
  sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID.String() < sorted[j].ID.String() })
  for _, t := range sorted {
    fp.Topics = append(fp.Topics, topicFingerprint{
      ID:            t.ID.String(),
      Name:          t.Name,
      TheoryContent: t.TheoryContent,
      Difficulty:    t.Difficulty,
      Resources:     rawOrNull(t.Resources),
    })
  }

  sortedEvals := make([]*types.Evaluation, len(evals))
  copy(sortedEvals, evals)
  sort.Slice(sortedEvals, func(i, j int) bool { return sortedEvals[i].ID.String() < sortedEvals[j].ID.String() })
  for _, e := range sortedEvals {
    fp.Evaluations = append(fp.Evaluations, evaluationFingerprint{
      ID:          e.ID.String(),
      Title:       e.Title,
      Description: e.Description,
      Criteria:    rawOrNull(e.Criteria),
      Weight:      e.Weight,
    })
  }

  canonical, err := json.Marshal(fp)
  if err != nil {
    return "", fmt.Errorf("serialize fingerprint: %w", err)
  }
  sum := sha256.Sum256(canonical)
  return hex.EncodeToString(sum[:]), nil
}

func rawOrNull(b []byte) json.RawMessage {
  if len(b) == 0 {
    return json.RawMessage("null")
  }
  return json.RawMessage(b)
}
