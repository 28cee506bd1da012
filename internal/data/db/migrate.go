package db

import (
	"gorm.io/gorm"

	types "github.com/HaiderAli3D/LOKI-AI/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Core identity + auth
		// =========================
		&types.User{},
		&types.UserToken{},

		// =========================
		// Knowledge base
		// =========================
		&types.KnowledgeFragment{},

		// =========================
		// Tutoring
		// =========================
		&types.TutorSession{},
		&types.TutorMessage{},
		&types.TopicProgress{},

		// =========================
		// Exam practice
		// =========================
		&types.ExamAttempt{},
	)
}
