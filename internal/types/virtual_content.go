package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	VirtualContentStatusActive   = "active"
	VirtualContentStatusArchived = "archived"
)

// PersonalizationData is the per-content personalization stamp produced by the
// difficulty calculator. It is stored on VirtualContent as JSONB.
type PersonalizationData struct {
	VisualEmphasis       bool      `json:"visual_emphasis"`
	AuditoryEmphasis     bool      `json:"auditory_emphasis"`
	ReadingEmphasis      bool      `json:"reading_emphasis"`
	KinestheticEmphasis  bool      `json:"kinesthetic_emphasis"`
	DyslexiaFriendly     bool      `json:"dyslexia_friendly"`
	ADHDOptimized        bool      `json:"adhd_optimized"`
	HighContrast         bool      `json:"high_contrast"`
	DifficultyAdjustment float64   `json:"difficulty_adjustment"`
	EstimatedMinutes     int       `json:"estimated_minutes"`
	ContentType          string    `json:"content_type"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// VirtualContent is a personalized copy of one content item under a virtual
// topic. ContentID is nil for ephemeral content with no instructor original.
// Order may carry a fractional suffix so a chosen interactive variant sorts
// directly after its base slide (3 -> 3.1).
type VirtualContent struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VirtualTopicID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"virtual_topic_id"`
	ContentID           *uuid.UUID     `gorm:"type:uuid;column:content_id;index" json:"content_id,omitempty"`
	StudentID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	ContentType         string         `gorm:"column:content_type;not null" json:"content_type"`
	Payload             datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	PersonalizationData datatypes.JSON `gorm:"column:personalization_data;type:jsonb" json:"personalization_data"`
	Order               float64        `gorm:"column:order_index;not null;default:0" json:"order"`
	Status              string         `gorm:"column:status;not null;default:'active';index" json:"status"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (VirtualContent) TableName() string { return "virtual_content" }
