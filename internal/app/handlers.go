package app

import (
	"github.com/gin-gonic/gin"

	"github.com/HaiderAli3D/LOKI-AI/internal/http"
	httpH "github.com/HaiderAli3D/LOKI-AI/internal/http/handlers"
	httpMW "github.com/HaiderAli3D/LOKI-AI/internal/http/middleware"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
	"github.com/HaiderAli3D/LOKI-AI/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Auth      *httpH.AuthHandler
	Topic     *httpH.TopicHandler
	Knowledge *httpH.KnowledgeHandler
	Session   *httpH.SessionHandler
	Stream    *httpH.StreamHandler
	Progress  *httpH.ProgressHandler
	Exam      *httpH.ExamHandler
	Realtime  *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(),
		Auth:      httpH.NewAuthHandler(services.Auth),
		Topic:     httpH.NewTopicHandler(services.Topics),
		Knowledge: httpH.NewKnowledgeHandler(services.Knowledge),
		Session:   httpH.NewSessionHandler(services.Sessions),
		Stream:    httpH.NewStreamHandler(log, services.Streams),
		Progress:  httpH.NewProgressHandler(services.Progress),
		Exam:      httpH.NewExamHandler(services.Exams),
		Realtime:  httpH.NewRealtimeHandler(log, hub),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(log *logger.Logger, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:              log,
		HealthHandler:    handlers.Health,
		AuthHandler:      handlers.Auth,
		AuthMiddleware:   middleware.Auth,
		TopicHandler:     handlers.Topic,
		KnowledgeHandler: handlers.Knowledge,
		SessionHandler:   handlers.Session,
		StreamHandler:    handlers.Stream,
		ProgressHandler:  handlers.Progress,
		ExamHandler:      handlers.Exam,
		RealtimeHandler:  handlers.Realtime,
	})
}
