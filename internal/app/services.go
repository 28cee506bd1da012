package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/HaiderAli3D/LOKI-AI/internal/platform/anthropic"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
	"github.com/HaiderAli3D/LOKI-AI/internal/realtime"
	"github.com/HaiderAli3D/LOKI-AI/internal/realtime/bus"
	"github.com/HaiderAli3D/LOKI-AI/internal/services"
)

type Services struct {
	Auth      services.AuthService
	Topics    services.TopicService
	Knowledge services.KnowledgeService
	Sessions  services.SessionService
	Streams   services.StreamService
	Progress  services.ProgressService
	Exams     services.ExamService

	Notifier services.TutorNotifier
	Bus      bus.Bus
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	repos Repos,
	hub *realtime.SSEHub,
) (Services, error) {
	log.Info("Wiring services...")

	model, err := anthropic.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init anthropic client: %w", err)
	}

	topics, err := services.NewTopicService(log, cfg.TopicCatalogPath)
	if err != nil {
		return Services{}, fmt.Errorf("init topic catalog: %w", err)
	}

	// With REDIS_ADDR set, events fan out through redis so every replica's
	// hub sees them; otherwise the in-process hub is the whole pipeline.
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	var sseBus bus.Bus
	var pending services.PendingStreamStore = services.NewMemoryPendingStreamStore()
	if cfg.RedisAddr != "" {
		b, err := bus.NewRedisBus(log)
		if err != nil {
			return Services{}, fmt.Errorf("init redis bus: %w", err)
		}
		sseBus = b
		emitter = &services.RedisEmitter{Bus: b}

		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		pending = services.NewRedisPendingStreamStore(rdb)
	}
	notifier := services.NewTutorNotifier(emitter)

	knowledge := services.NewKnowledgeService(log, repos.Fragment, topics, cfg.KnowledgeContextLimit)
	prompts := services.NewPromptBuilder()

	sessions := services.NewSessionService(
		log, db,
		repos.Session, repos.Message, repos.Progress,
		topics, knowledge, prompts, model, notifier,
	)
	streams := services.NewStreamService(log, sessions, pending, model, notifier, cfg.PendingStreamTTL)
	progress := services.NewProgressService(log, repos.Progress, topics, notifier)
	exams := services.NewExamService(log, repos.Attempt, repos.Progress, topics, knowledge, model, notifier)

	auth, err := services.NewAuthService(log, db, repos.User, repos.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	return Services{
		Auth:      auth,
		Topics:    topics,
		Knowledge: knowledge,
		Sessions:  sessions,
		Streams:   streams,
		Progress:  progress,
		Exams:     exams,
		Notifier:  notifier,
		Bus:       sseBus,
	}, nil
}
