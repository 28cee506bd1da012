package app

import (
	"gorm.io/gorm"

	authrepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/auth"
	examrepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/exam"
	knowledgerepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/knowledge"
	tutoringrepo "github.com/HaiderAli3D/LOKI-AI/internal/data/repos/tutoring"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

type Repos struct {
	User      authrepo.UserRepo
	UserToken authrepo.UserTokenRepo

	Fragment knowledgerepo.FragmentRepo

	Session  tutoringrepo.SessionRepo
	Message  tutoringrepo.MessageRepo
	Progress tutoringrepo.ProgressRepo

	Attempt examrepo.AttemptRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      authrepo.NewUserRepo(db, log),
		UserToken: authrepo.NewUserTokenRepo(db, log),

		Fragment: knowledgerepo.NewFragmentRepo(db, log),

		Session:  tutoringrepo.NewSessionRepo(db, log),
		Message:  tutoringrepo.NewMessageRepo(db, log),
		Progress: tutoringrepo.NewProgressRepo(db, log),

		Attempt: examrepo.NewAttemptRepo(db, log),
	}
}
