package exam

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExamAttempt is one generated practice paper for one student: the
// generated questions, the student's answers keyed by question index,
// and, once completed, per-question feedback plus a percentage score.
type ExamAttempt struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	TopicID   string     `gorm:"column:topic_id;not null;default:'';index" json:"topic_id,omitempty"`
	SessionID *uuid.UUID `gorm:"type:uuid;column:session_id;index" json:"session_id,omitempty"`

	Questions datatypes.JSON `gorm:"type:jsonb;column:questions;not null;default:'[]'" json:"questions"`
	Answers   datatypes.JSON `gorm:"type:jsonb;column:answers;not null;default:'{}'" json:"answers"`
	Feedback  datatypes.JSON `gorm:"type:jsonb;column:feedback;not null;default:'{}'" json:"feedback,omitempty"`

	Score     *float64 `gorm:"column:score" json:"score,omitempty"`
	Completed bool     `gorm:"column:completed;not null;default:false;index" json:"completed"`

	StartedAt       time.Time  `gorm:"column:started_at;not null;default:now();index" json:"started_at"`
	EndedAt         *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	DurationSeconds *int64     `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ExamAttempt) TableName() string { return "exam_attempt" }

// Question is the generated exam question shape stored in
// ExamAttempt.Questions.
type Question struct {
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer"`
	Marks    int      `json:"marks"`
}

// Evaluation is the per-question marking result stored in
// ExamAttempt.Feedback.
type Evaluation struct {
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"max_score"`
	Feedback    string  `json:"feedback"`
	ModelAnswer string  `json:"model_answer"`
}
