package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	GenerationStatusPending    = "pending"
	GenerationStatusGenerating = "generating"
	GenerationStatusCompleted  = "completed"
	GenerationStatusFailed     = "failed"
)

const (
	CompletionNotStarted = "not_started"
	CompletionInProgress = "in_progress"
	CompletionCompleted  = "completed"
)

// VirtualModule is the personalized materialization of a module for one
// student. One row per (module, student), enforced by a unique index; the core
// never deletes it, only archives its topics.
type VirtualModule struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudyPlanID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"study_plan_id"`
	ModuleID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_module_student,unique" json:"module_id"`
	StudentID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_module_student,unique" json:"student_id"`
	Adaptations        datatypes.JSON `gorm:"column:adaptations;type:jsonb" json:"adaptations"`
	GenerationStatus   string         `gorm:"column:generation_status;not null;default:'pending'" json:"generation_status"`
	GenerationProgress int            `gorm:"column:generation_progress;not null;default:0" json:"generation_progress"`
	Progress           float64        `gorm:"column:progress;not null;default:0" json:"progress"`
	CompletionStatus   string         `gorm:"column:completion_status;not null;default:'not_started'" json:"completion_status"`
	UpdateLog          datatypes.JSON `gorm:"column:update_log;type:jsonb" json:"update_log"`
	LastSyncDate       *time.Time     `gorm:"column:last_sync_date" json:"last_sync_date,omitempty"`
	SyncCount          int            `gorm:"column:sync_count;not null;default:0" json:"sync_count"`
	LastActivityAt     *time.Time     `gorm:"column:last_activity_at" json:"last_activity_at,omitempty"`
	CompletedAt        *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (VirtualModule) TableName() string { return "virtual_module" }

// ModuleUpdateEvent is one entry of VirtualModule.UpdateLog.
type ModuleUpdateEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Details   interface{} `json:"details,omitempty"`
}

const UpdateEventContentSync = "content_sync"
