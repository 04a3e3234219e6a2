package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// StudentProfileRecord holds the raw cognitive-profile blob as the profile
// subsystem stores it. The shape is inconsistent across producers; callers go
// through ParseCognitiveProfile and never read the blob directly.
type StudentProfileRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"student_id"`
	Profile   datatypes.JSON `gorm:"column:profile;type:jsonb" json:"profile"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (StudentProfileRecord) TableName() string { return "student_profile" }
