package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// GeneralTopicID files a fragment under no particular topic; lookup for
// any topic always includes these.
const GeneralTopicID = "general"

// KnowledgeFragment is an immutable unit of ingested reference text.
// Fragments are append-only: there is deliberately no update path, and
// ContentHash carries a unique index so re-uploading identical source
// content is rejected rather than duplicated.
type KnowledgeFragment struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TopicID     string     `gorm:"column:topic_id;not null;index" json:"topic_id"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Content     string     `gorm:"column:content;type:text;not null" json:"content"`
	SourceRef   string     `gorm:"column:source_ref;not null;default:''" json:"source_ref,omitempty"`
	ContentHash string     `gorm:"column:content_hash;uniqueIndex;not null" json:"content_hash"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid;column:created_by;index" json:"created_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (KnowledgeFragment) TableName() string { return "knowledge_fragment" }
