package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TopicStatus is the lifecycle state of a VirtualTopic.
//
//	Locked -> Active -> Completed
//	Locked/Active -> Archived
//
// Completed and Archived are terminal.
type TopicStatus string

const (
	TopicStatusLocked    TopicStatus = "locked"
	TopicStatusActive    TopicStatus = "active"
	TopicStatusCompleted TopicStatus = "completed"
	TopicStatusArchived  TopicStatus = "archived"
)

func (s TopicStatus) Terminal() bool {
	return s == TopicStatusCompleted || s == TopicStatusArchived
}

// CanTransition reports whether s -> next is a legal lifecycle move.
func (s TopicStatus) CanTransition(next TopicStatus) bool {
	switch s {
	case TopicStatusLocked:
		return next == TopicStatusActive || next == TopicStatusArchived
	case TopicStatusActive:
		return next == TopicStatusCompleted || next == TopicStatusArchived
	default:
		return false
	}
}

// VirtualTopic is the personalized materialization of one topic inside a
// virtual module. Order is the assignment order and is never reused, so gaps
// appear after archival. The Locked boolean mirrors Status for fast filtering
// and must only change through the repo's transition methods.
type VirtualTopic struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TopicID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_vmodule_topic,unique" json:"topic_id"`
	VirtualModuleID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_vmodule_topic,unique" json:"virtual_module_id"`
	Order            int            `gorm:"column:order_index;not null" json:"order"`
	Adaptations      datatypes.JSON `gorm:"column:adaptations;type:jsonb" json:"adaptations"`
	Status           TopicStatus    `gorm:"column:status;not null;default:'locked';index" json:"status"`
	Locked           bool           `gorm:"column:locked;not null;default:true;index" json:"locked"`
	Progress         float64        `gorm:"column:progress;not null;default:0" json:"progress"`
	CompletionStatus string         `gorm:"column:completion_status;not null;default:'not_started'" json:"completion_status"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (VirtualTopic) TableName() string { return "virtual_topic" }
