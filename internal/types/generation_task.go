package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TaskTypeGenerate = "generate"
	TaskTypeUpdate   = "update"
	TaskTypeEnhance  = "enhance"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// GenerationTask is one unit of deferred generation/update work. At most one
// pending or processing task may exist per (student, module); the enqueue path
// enforces that inside a transaction.
type GenerationTask struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_task_student_module" json:"student_id"`
	ModuleID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_task_student_module" json:"module_id"`
	TaskType            string         `gorm:"column:task_type;not null" json:"task_type"`
	Priority            int            `gorm:"column:priority;not null;default:5" json:"priority"`
	Status              string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Attempts            int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts         int            `gorm:"column:max_attempts;not null;default:3" json:"max_attempts"`
	Payload             datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	ErrorMessage        string         `gorm:"column:error_message" json:"error_message,omitempty"`
	EstimatedDurationS  int            `gorm:"column:estimated_duration_seconds;not null;default:60" json:"estimated_duration_seconds"`
	ProcessingStartedAt *time.Time     `gorm:"column:processing_started_at" json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (GenerationTask) TableName() string { return "generation_task" }

// InFlight reports whether the task occupies the per-(student,module) slot.
func (t *GenerationTask) InFlight() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusProcessing
}
