package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/HaiderAli3D/LOKI-AI/internal/http/handlers"
	httpMW "github.com/HaiderAli3D/LOKI-AI/internal/http/middleware"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthHandler    *httpH.AuthHandler
	AuthMiddleware *httpMW.AuthMiddleware

	TopicHandler     *httpH.TopicHandler
	KnowledgeHandler *httpH.KnowledgeHandler
	SessionHandler   *httpH.SessionHandler
	StreamHandler    *httpH.StreamHandler
	ProgressHandler  *httpH.ProgressHandler
	ExamHandler      *httpH.ExamHandler
	RealtimeHandler  *httpH.RealtimeHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("loki"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
			api.POST("/refresh", cfg.AuthHandler.Refresh)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/events", cfg.RealtimeHandler.Events)
		}

		// Topic catalog
		if cfg.TopicHandler != nil {
			protected.GET("/topics", cfg.TopicHandler.List)
			protected.GET("/topics/:id", cfg.TopicHandler.Get)
		}

		// Tutoring sessions
		if cfg.SessionHandler != nil {
			protected.POST("/sessions", cfg.SessionHandler.Start)
			protected.GET("/sessions", cfg.SessionHandler.List)
			protected.GET("/sessions/:id", cfg.SessionHandler.Transcript)
			protected.POST("/sessions/:id/messages", cfg.SessionHandler.Turn)
			protected.DELETE("/sessions/:id/messages", cfg.SessionHandler.ClearHistory)
			protected.POST("/sessions/:id/end", cfg.SessionHandler.End)
			protected.POST("/sessions/:id/rate", cfg.SessionHandler.Rate)
		}

		// Streaming turns
		if cfg.StreamHandler != nil {
			protected.POST("/sessions/:id/stream", cfg.StreamHandler.Begin)
			protected.GET("/streams/:request_id", cfg.StreamHandler.Attach)
		}

		// Topic progress
		if cfg.ProgressHandler != nil {
			protected.GET("/progress", cfg.ProgressHandler.List)
			protected.GET("/progress/summary", cfg.ProgressHandler.Summary)
			protected.GET("/progress/topics/:id", cfg.ProgressHandler.Get)
			protected.PUT("/progress/topics/:id", cfg.ProgressHandler.Set)
		}

		// Exams
		if cfg.ExamHandler != nil {
			protected.POST("/exams", cfg.ExamHandler.Start)
			protected.GET("/exams", cfg.ExamHandler.List)
			protected.GET("/exams/stats", cfg.ExamHandler.Stats)
			protected.GET("/exams/:id", cfg.ExamHandler.Get)
			protected.POST("/exams/:id/answers", cfg.ExamHandler.SubmitAnswer)
			protected.POST("/exams/:id/complete", cfg.ExamHandler.Complete)
		}

		// Knowledge base (admin)
		if cfg.KnowledgeHandler != nil && cfg.AuthMiddleware != nil {
			admin := protected.Group("/knowledge")
			admin.Use(cfg.AuthMiddleware.RequireAdmin())
			admin.POST("", cfg.KnowledgeHandler.Ingest)
			admin.GET("/topics/:id", cfg.KnowledgeHandler.ListByTopic)
		}
	}

	return r
}
