package domain

import (
	"github.com/HaiderAli3D/LOKI-AI/internal/domain/auth"
	"github.com/HaiderAli3D/LOKI-AI/internal/domain/exam"
	"github.com/HaiderAli3D/LOKI-AI/internal/domain/knowledge"
	"github.com/HaiderAli3D/LOKI-AI/internal/domain/tutoring"
	"github.com/HaiderAli3D/LOKI-AI/internal/domain/user"
)

// Aggregated aliases so callers can import one package as `types`.

type User = user.User
type UserToken = auth.UserToken

type KnowledgeFragment = knowledge.KnowledgeFragment

type TutorSession = tutoring.TutorSession
type TutorMessage = tutoring.TutorMessage
type TopicProgress = tutoring.TopicProgress

type ExamAttempt = exam.ExamAttempt
type ExamQuestion = exam.Question
type ExamEvaluation = exam.Evaluation

const (
	RoleStudent = user.RoleStudent
	RoleAdmin   = user.RoleAdmin

	GeneralTopicID = knowledge.GeneralTopicID

	SessionStatusOpen   = tutoring.SessionStatusOpen
	SessionStatusClosed = tutoring.SessionStatusClosed

	ModeExplore  = tutoring.ModeExplore
	ModePractice = tutoring.ModePractice
	ModeCode     = tutoring.ModeCode
	ModeReview   = tutoring.ModeReview
	ModeTest     = tutoring.ModeTest

	MessageRoleUser      = tutoring.RoleUser
	MessageRoleAssistant = tutoring.RoleAssistant
	MessageRoleSystem    = tutoring.RoleSystem

	ProficiencyMin = tutoring.ProficiencyMin
	ProficiencyMax = tutoring.ProficiencyMax
)

var (
	ValidMode        = tutoring.ValidMode
	ClampProficiency = tutoring.ClampProficiency
	ProficiencyLabel = tutoring.ProficiencyLabel
)
