package services

import (
  "encoding/json"
  "fmt"
  "sort"

  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// SelectorWeights are the variant-scoring weights. The values come from the
// platform's tuned defaults; treat them as tunable, not as a contract.
type SelectorWeights struct {
  VAKAlignment    float64
  RLScore         float64
  FinalScore      float64
  InteractionMode float64
  Template        float64
  MatchScore      float64
}

var DefaultSelectorWeights = SelectorWeights{
  VAKAlignment:    0.45,
  RLScore:         0.25,
  FinalScore:      0.15,
  InteractionMode: 0.10,
  Template:        0.10,
  MatchScore:      0.05,
}

// Preferences narrow what the selector may pick for one student.
type Preferences struct {
  AvoidTypes               []string
  PreferredInteractionMode string
  PreferredTemplateID      string
}

// SelectedContent is one chosen item with its position in the personalized
// sequence. Order carries a fractional suffix for interactive variants so they
// sort directly after their base slide.
type SelectedContent struct {
  Item  *types.ContentItem
  Order float64
}

// BalanceReport is the advisory diagnostic of a selection; it never blocks
// generation.
type BalanceReport struct {
  Score           float64  `json:"score"`
  Warnings        []string `json:"warnings,omitempty"`
  Recommendations []string `json:"recommendations,omitempty"`
}

type ContentSelector struct {
  weights SelectorWeights
  log     *logger.Logger
}

func NewContentSelector(baseLog *logger.Logger, weights SelectorWeights) *ContentSelector {
  return &ContentSelector{
    weights: weights,
    log:     baseLog.With("service", "ContentSelector"),
  }
}

// Select picks a bounded, balanced subset of a topic's content inventory and
// orders it for one student: base slides in instructor order, at most one
// interactive variant directly after each slide, optional resources next,
// evaluations last with quizzes at the very end. If filtering would leave the
// student with nothing, the unfiltered inventory is returned unchanged so
// every topic stays navigable.
func (cs *ContentSelector) Select(originalContents []*types.ContentItem, profile types.CognitiveProfile, prefs Preferences) []SelectedContent {
  avoid := map[string]bool{}
  for _, t := range prefs.AvoidTypes {
    avoid[t] = true
  }

  baseSlides := []*types.ContentItem{}
  evaluations := []*types.ContentItem{}
  rest := []*types.ContentItem{}
  variantsByParent := map[uuid.UUID][]*types.ContentItem{}

  for _, item := range originalContents {
    if item == nil {
      continue
    }
    if !eligibleStatus(item.Status) {
      continue
    }
    if item.ContentType == types.ContentTypeTemplate {
      continue
    }
    if avoid[item.ContentType] {
      continue
    }

    switch {
    case item.IsBaseSlide():
      baseSlides = append(baseSlides, item)
    case types.IsEvaluationType(item.ContentType):
      evaluations = append(evaluations, item)
    case item.ParentContentID != nil && *item.ParentContentID != item.ID:
      variantsByParent[*item.ParentContentID] = append(variantsByParent[*item.ParentContentID], item)
    default:
      rest = append(rest, item)
    }
  }

  sortByInstructorOrder(baseSlides)
  sortByInstructorOrder(evaluations)

  // Orphan variants (parent filtered out or missing) become optional resources.
  baseIDs := map[uuid.UUID]bool{}
  for _, s := range baseSlides {
    baseIDs[s.ID] = true
  }
  for parentID, vs := range variantsByParent {
    if !baseIDs[parentID] {
      rest = append(rest, vs...)
    }
  }

  out := []SelectedContent{}
  next := 1
  for _, slide := range baseSlides {
    slideOrder := orderFor(slide, float64(next))
    out = append(out, SelectedContent{Item: slide, Order: slideOrder})
    next++

    if chosen := cs.pickVariant(variantsByParent[slide.ID], profile, prefs); chosen != nil {
      out = append(out, SelectedContent{Item: chosen, Order: slideOrder + 0.1})
    }
  }

  for _, item := range rest {
    out = append(out, SelectedContent{Item: item, Order: orderFor(item, float64(next))})
    next++
  }

  // Evaluations close the sequence; quizzes go last among them.
  sort.SliceStable(evaluations, func(i, j int) bool {
    iq := evaluations[i].ContentType == types.ContentTypeQuiz
    jq := evaluations[j].ContentType == types.ContentTypeQuiz
    if iq != jq {
      return !iq
    }
    return false
  })
  for _, item := range evaluations {
    out = append(out, SelectedContent{Item: item, Order: orderFor(item, float64(next))})
    next++
  }

  if len(out) == 0 && len(originalContents) > 0 {
    cs.log.Warn("Selection filtered out every item, falling back to full inventory", "items", len(originalContents))
    for i, item := range originalContents {
      if item == nil {
        continue
      }
      o := float64(i + 1)
      if item.Order != nil {
        o = *item.Order
      }
      out = append(out, SelectedContent{Item: item, Order: o})
    }
  }

  return out
}

// pickVariant scores each interactive candidate and returns the single best
// one, or nil when there are no candidates. Ties keep the first-seen candidate.
func (cs *ContentSelector) pickVariant(candidates []*types.ContentItem, profile types.CognitiveProfile, prefs Preferences) *types.ContentItem {
  var best *types.ContentItem
  bestScore := 0.0

  for _, c := range candidates {
    if c == nil {
      continue
    }
    score := cs.scoreVariant(c, profile, prefs)
    if best == nil || score > bestScore {
      best = c
      bestScore = score
    }
  }
  return best
}

func (cs *ContentSelector) scoreVariant(c *types.ContentItem, profile types.CognitiveProfile, prefs Preferences) float64 {
  w := cs.weights

  align := profile.VAK.Dot(vakFromJSON(c.VAKWeights))

  modeMatch := 0.0
  if prefs.PreferredInteractionMode != "" && c.InteractionMode == prefs.PreferredInteractionMode {
    modeMatch = 1.0
  }
  templateMatch := 0.0
  if prefs.PreferredTemplateID != "" && c.TemplateID == prefs.PreferredTemplateID {
    templateMatch = 1.0
  }

  return w.VAKAlignment*align +
    w.RLScore*c.RLScore +
    w.FinalScore*c.FinalScore +
    w.InteractionMode*modeMatch +
    w.Template*templateMatch +
    w.MatchScore*c.MatchScore
}

// completeContentTypes are the self-contained types a topic can be studied
// from without any other material.
var completeContentTypes = map[string]bool{
  types.ContentTypeSlide: true,
  types.ContentTypeText:  true,
  types.ContentTypeVideo: true,
}

// ValidateBalance scores a selection 0.0-1.0 for monitoring. Advisory only.
func (cs *ContentSelector) ValidateBalance(selected []SelectedContent, upstream []*types.ContentItem) BalanceReport {
  report := BalanceReport{}

  distinct := map[string]bool{}
  hasComplete := false
  hasEvaluation := false
  for _, sc := range selected {
    if sc.Item == nil {
      continue
    }
    distinct[sc.Item.ContentType] = true
    if completeContentTypes[sc.Item.ContentType] {
      hasComplete = true
    }
    if types.IsEvaluationType(sc.Item.ContentType) {
      hasEvaluation = true
    }
  }

  upstreamHasEvaluation := false
  for _, item := range upstream {
    if item != nil && types.IsEvaluationType(item.ContentType) {
      upstreamHasEvaluation = true
      break
    }
  }

  if hasComplete {
    report.Score += 0.4
  } else {
    report.Warnings = append(report.Warnings, "no self-contained content type in selection")
    report.Recommendations = append(report.Recommendations, "add a slide, text or video item to the topic")
  }

  if len(distinct) >= 3 {
    report.Score += 0.3
  } else {
    report.Warnings = append(report.Warnings, fmt.Sprintf("low content-type diversity (%d distinct)", len(distinct)))
    report.Recommendations = append(report.Recommendations, "author at least 3 distinct content types")
  }

  if n := len(selected); n >= 3 && n <= 6 {
    report.Score += 0.2
  } else if n < 3 {
    report.Warnings = append(report.Warnings, fmt.Sprintf("selection too small (%d items)", n))
  } else {
    report.Warnings = append(report.Warnings, fmt.Sprintf("selection too large (%d items)", n))
  }

  if !upstreamHasEvaluation || hasEvaluation {
    report.Score += 0.1
  } else {
    report.Warnings = append(report.Warnings, "topic has evaluations but none were selected")
  }

  return report
}

func eligibleStatus(status string) bool {
  return status == types.ContentStatusActive || status == types.ContentStatusApproved
}

// sortByInstructorOrder sorts ascending by the instructor's order; items
// without one sort last, input order preserved for ties.
func sortByInstructorOrder(items []*types.ContentItem) {
  sort.SliceStable(items, func(i, j int) bool {
    oi, oj := items[i].Order, items[j].Order
    if oi == nil {
      return false
    }
    if oj == nil {
      return true
    }
    return *oi < *oj
  })
}

// orderFor honors an explicit override carried on the item payload, otherwise
// assigns the contiguous position.
func orderFor(item *types.ContentItem, position float64) float64 {
  if len(item.Payload) > 0 {
    var m map[string]interface{}
    if err := json.Unmarshal(item.Payload, &m); err == nil {
      if v, ok := m["order_override"].(float64); ok {
        return v
      }
    }
  }
  return position
}

func vakFromJSON(raw []byte) types.VAKScores {
  if len(raw) == 0 {
    return types.VAKScores{}
  }
  var v types.VAKScores
  if err := json.Unmarshal(raw, &v); err != nil {
    return types.VAKScores{}
  }
  return v.Normalized()
}
