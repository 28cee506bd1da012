package tutoring

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Proficiency bounds for TopicProgress ratings.
const (
	ProficiencyMin = 0
	ProficiencyMax = 5
)

// TopicProgress tracks one student's standing on one topic. At most one
// row exists per (user, topic) pair; all writers upsert.
type TopicProgress struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index:idx_topic_progress_user_topic,unique,priority:1" json:"user_id"`
	TopicID string    `gorm:"column:topic_id;not null;index:idx_topic_progress_user_topic,unique,priority:2" json:"topic_id"`

	Proficiency int    `gorm:"column:proficiency;not null;default:0" json:"proficiency"`
	Notes       string `gorm:"column:notes;type:text;not null;default:''" json:"notes,omitempty"`

	LastStudied      *time.Time `gorm:"column:last_studied;index" json:"last_studied,omitempty"`
	StudyTimeSeconds int64      `gorm:"column:study_time_seconds;not null;default:0" json:"study_time_seconds"`
	SessionCount     int64      `gorm:"column:session_count;not null;default:0" json:"session_count"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (TopicProgress) TableName() string { return "topic_progress" }

// ClampProficiency bounds a rating to the valid 0-5 range.
func ClampProficiency(rating int) int {
	if rating < ProficiencyMin {
		return ProficiencyMin
	}
	if rating > ProficiencyMax {
		return ProficiencyMax
	}
	return rating
}

// ProficiencyLabel maps a rating to its display label.
func ProficiencyLabel(rating int) string {
	labels := []string{
		"Not Started",
		"Beginner",
		"Basic Understanding",
		"Intermediate",
		"Advanced",
		"Expert",
	}
	return labels[ClampProficiency(rating)]
}
