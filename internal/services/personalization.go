package services

import (
  "time"

  "github.com/yachay-edu/yachay-backend/internal/types"
)

// Pure personalization math. Everything here is deterministic in the profile;
// missing profile fields behave as a zero bias and never block generation.

// AdjustDifficulty maps a cognitive profile to a difficulty adjustment scalar
// in [-0.5, 0.5]. Negative means easier material.
func AdjustDifficulty(profile types.CognitiveProfile) float64 {
  adj := 0.0

  if profile.HasDifficulty("memoria") || profile.HasDifficulty("atención") {
    adj -= 0.2
  }
  if profile.HasDifficulty("procesamiento") {
    adj -= 0.3
  }
  if profile.HasStrength("análisis") || profile.HasStrength("síntesis") {
    adj += 0.2
  }
  if profile.HasStrength("memoria_visual") {
    adj += 0.1
  }

  if adj < -0.5 {
    adj = -0.5
  }
  if adj > 0.5 {
    adj = 0.5
  }
  return adj
}

var baseMinutesByType = map[string]int{
  types.ContentTypeText:    10,
  types.ContentTypeSlide:   12,
  types.ContentTypeVideo:   8,
  types.ContentTypeDiagram: 5,
  types.ContentTypeGame:    15,
  types.ContentTypeQuiz:    10,
  types.ContentTypeExam:    20,
}

const defaultBaseMinutes = 10

// EstimateTime returns the expected minutes a student needs for one content
// item, widened for reading-heavy types under dyslexia and for sustained-focus
// types under ADHD. Truncated to whole minutes.
func EstimateTime(contentType string, profile types.CognitiveProfile) int {
  base, ok := baseMinutesByType[contentType]
  if !ok {
    base = defaultBaseMinutes
  }

  minutes := float64(base)
  if profile.Dyslexia && (contentType == types.ContentTypeText || contentType == types.ContentTypeSlide) {
    minutes *= 1.5
  }
  if profile.ADHD && (contentType == types.ContentTypeText || contentType == types.ContentTypeVideo) {
    minutes *= 1.3
  }
  return int(minutes)
}

const vakEmphasisThreshold = 0.6

// BuildPersonalization stamps per-content personalization metadata: VAK
// emphasis flags, accessibility adaptations mirroring the profile's disability
// flags, the difficulty adjustment and the time estimate.
func BuildPersonalization(content *types.ContentItem, profile types.CognitiveProfile) types.PersonalizationData {
  return types.PersonalizationData{
    VisualEmphasis:       profile.VAK.Visual > vakEmphasisThreshold,
    AuditoryEmphasis:     profile.VAK.Auditory > vakEmphasisThreshold,
    ReadingEmphasis:      profile.VAK.ReadingWriting > vakEmphasisThreshold,
    KinestheticEmphasis:  profile.VAK.Kinesthetic > vakEmphasisThreshold,
    DyslexiaFriendly:     profile.Dyslexia,
    ADHDOptimized:        profile.ADHD,
    HighContrast:         profile.VisualImpairment,
    DifficultyAdjustment: AdjustDifficulty(profile),
    EstimatedMinutes:     EstimateTime(content.ContentType, profile),
    ContentType:          content.ContentType,
    GeneratedAt:          time.Now(),
  }
}
