package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Module is instructor-authored source material. The core reads it and never
// writes to it; the CRUD layer that owns it lives elsewhere.
type Module struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudyPlanID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"study_plan_id"`
	Name             string         `gorm:"column:name;not null" json:"name"`
	LearningOutcomes datatypes.JSON `gorm:"column:learning_outcomes;type:jsonb" json:"learning_outcomes"`
	EvaluationRubric datatypes.JSON `gorm:"column:evaluation_rubric;type:jsonb" json:"evaluation_rubric"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Module) TableName() string { return "module" }

// ModuleVersion is one entry of a module's append-only content-version history.
// Rows are written by the change detector and never updated.
type ModuleVersion struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID     uuid.UUID `gorm:"type:uuid;not null;index" json:"module_id"`
	Hash         string    `gorm:"column:hash;not null" json:"hash"`
	ChangeMarker string    `gorm:"column:change_marker" json:"change_marker"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ModuleVersion) TableName() string { return "module_version" }
