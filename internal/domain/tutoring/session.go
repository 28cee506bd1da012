package tutoring

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStatusOpen   = "open"
	SessionStatusClosed = "closed"
)

// Tutoring modes. Each selects a distinct instruction template and
// turn-taking pattern.
const (
	ModeExplore  = "explore"
	ModePractice = "practice"
	ModeCode     = "code"
	ModeReview   = "review"
	ModeTest     = "test"
)

// TutorSession is one continuous tutoring interaction for one student,
// optionally scoped to a topic and mode. EndedAt, once set, is never
// cleared; the owning user never changes.
type TutorSession struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	TopicID string `gorm:"column:topic_id;not null;default:'';index" json:"topic_id,omitempty"`
	Mode    string `gorm:"column:mode;not null;index" json:"mode"`
	Status  string `gorm:"column:status;not null;default:'open';index" json:"status"`

	Summary string `gorm:"column:summary;type:text;not null;default:''" json:"summary,omitempty"`

	ProficiencyBefore *int `gorm:"column:proficiency_before" json:"proficiency_before,omitempty"`
	ProficiencyAfter  *int `gorm:"column:proficiency_after" json:"proficiency_after,omitempty"`

	StartedAt       time.Time  `gorm:"column:started_at;not null;default:now();index" json:"started_at"`
	EndedAt         *time.Time `gorm:"column:ended_at;index" json:"ended_at,omitempty"`
	DurationSeconds *int64     `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`

	Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	// Concurrency-safe per-session transcript sequencing.
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"next_seq"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (TutorSession) TableName() string { return "tutor_session" }

func ValidMode(mode string) bool {
	switch mode {
	case ModeExplore, ModePractice, ModeCode, ModeReview, ModeTest:
		return true
	default:
		return false
	}
}
