package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Evaluation is an instructor-authored graded activity attached to a module.
// The core only reads it for change fingerprinting; grading math lives in the
// evaluation subsystem.
type Evaluation struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description" json:"description"`
	Criteria    datatypes.JSON `gorm:"column:criteria;type:jsonb" json:"criteria"`
	Weight      float64        `gorm:"column:weight;not null;default:0" json:"weight"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Evaluation) TableName() string { return "evaluation" }
