package services

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

type ProfileService interface {
  // GetCognitiveProfile loads and interprets the student's stored profile.
  // A missing or malformed profile degrades to an empty one; this method
  // never returns an error so generation can always proceed.
  GetCognitiveProfile(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) types.CognitiveProfile
}

type profileService struct {
  db       *gorm.DB
  log      *logger.Logger
  profiles repos.StudentProfileRepo
}

func NewProfileService(db *gorm.DB, baseLog *logger.Logger, profiles repos.StudentProfileRepo) ProfileService {
  return &profileService{
    db:       db,
    log:      baseLog.With("service", "ProfileService"),
    profiles: profiles,
  }
}

func (s *profileService) GetCognitiveProfile(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) types.CognitiveProfile {
  record, err := s.profiles.GetByStudentID(ctx, tx, studentID)
  if err != nil {
    s.log.Warn("Failed to load student profile, using empty profile", "student_id", studentID, "error", err)
    return types.CognitiveProfile{}
  }
  if record == nil {
    s.log.Debug("Student has no stored profile", "student_id", studentID)
    return types.CognitiveProfile{}
  }
  profile := types.ParseCognitiveProfile(record.Profile)
  if profile.IsEmpty() {
    s.log.Debug("Student profile is empty after parsing", "student_id", studentID)
  }
  return profile
}
