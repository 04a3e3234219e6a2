package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ContentTypeSlide         = "slide"
	ContentTypeText          = "text"
	ContentTypeVideo         = "video"
	ContentTypeDiagram       = "diagram"
	ContentTypeGame          = "game"
	ContentTypeQuiz          = "quiz"
	ContentTypeExam          = "exam"
	ContentTypeFormativeTest = "formative_test"
	ContentTypeSummativeTest = "summative_test"
	ContentTypeProject       = "project"
	ContentTypeAssessment    = "assessment"
	ContentTypeTemplate      = "template"
)

const (
	ContentStatusDraft    = "draft"
	ContentStatusActive   = "active"
	ContentStatusApproved = "approved"
)

// ContentItem is one instructor-authored content piece under a topic. A row
// whose ParentContentID points at another item is an interactive variant of
// that base item; RenderEngine/InstanceID mark template-backed content.
type ContentItem struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TopicID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"topic_id"`
	ContentType     string         `gorm:"column:content_type;not null;index" json:"content_type"`
	Order           *float64       `gorm:"column:order_index" json:"order,omitempty"`
	Status          string         `gorm:"column:status;not null;default:'active'" json:"status"`
	ParentContentID *uuid.UUID     `gorm:"type:uuid;column:parent_content_id;index" json:"parent_content_id,omitempty"`
	RenderEngine    string         `gorm:"column:render_engine" json:"render_engine,omitempty"`
	InstanceID      *uuid.UUID     `gorm:"type:uuid;column:instance_id" json:"instance_id,omitempty"`
	InteractionMode string         `gorm:"column:interaction_mode" json:"interaction_mode,omitempty"`
	TemplateID      string         `gorm:"column:template_id" json:"template_id,omitempty"`
	Payload         datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	VAKWeights      datatypes.JSON `gorm:"column:vak_weights;type:jsonb" json:"vak_weights"`
	RLScore         float64        `gorm:"column:rl_score;not null;default:0" json:"rl_score"`
	FinalScore      float64        `gorm:"column:final_score;not null;default:0" json:"final_score"`
	MatchScore      float64        `gorm:"column:match_score;not null;default:0" json:"match_score"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ContentItem) TableName() string { return "content_item" }

// IsVariantOf reports whether the item is an interactive variant of base.
// A parent pointing at the item itself counts as a base item, not a variant.
func (c *ContentItem) IsVariantOf(baseID uuid.UUID) bool {
	return c.ParentContentID != nil && *c.ParentContentID == baseID && c.ID != baseID
}

func (c *ContentItem) IsBaseSlide() bool {
	if c.ContentType != ContentTypeSlide {
		return false
	}
	return c.ParentContentID == nil || *c.ParentContentID == c.ID
}

func IsEvaluationType(contentType string) bool {
	switch contentType {
	case ContentTypeQuiz, ContentTypeExam, ContentTypeFormativeTest,
		ContentTypeSummativeTest, ContentTypeProject, ContentTypeAssessment:
		return true
	}
	return false
}
