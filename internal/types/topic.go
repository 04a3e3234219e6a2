package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TopicDifficultyEasy   = "easy"
	TopicDifficultyMedium = "medium"
	TopicDifficultyHard   = "hard"
)

// Topic is an instructor-authored topic inside a module. Only published topics
// are eligible for virtualization.
type Topic struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	Name          string         `gorm:"column:name;not null" json:"name"`
	Difficulty    string         `gorm:"column:difficulty;not null;default:'medium'" json:"difficulty"`
	TheoryContent string         `gorm:"column:theory_content" json:"theory_content"`
	Resources     datatypes.JSON `gorm:"column:resources;type:jsonb" json:"resources"`
	Published     bool           `gorm:"column:published;not null;default:false;index" json:"published"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Topic) TableName() string { return "topic" }
