package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HaiderAli3D/LOKI-AI/internal/http/response"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/requestdata"
	"github.com/HaiderAli3D/LOKI-AI/internal/services"
)

type KnowledgeHandler struct {
	knowledge services.KnowledgeService
}

func NewKnowledgeHandler(knowledge services.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge}
}

func (kh *KnowledgeHandler) Ingest(c *gin.Context) {
	var req struct {
		TopicID   string `json:"topic_id"`
		Title     string `json:"title"`
		Content   string `json:"content"`
		SourceRef string `json:"source_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	fragment, created, err := kh.knowledge.Ingest(dbc, services.IngestFragmentInput{
		TopicID:   req.TopicID,
		Title:     req.Title,
		Content:   req.Content,
		SourceRef: req.SourceRef,
		CreatedBy: &userID,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if !created {
		response.RespondOK(c, gin.H{
			"fragment": fragment,
			"created":  false,
			"code":     apierr.CodeAlreadyProcessed,
		})
		return
	}
	response.RespondCreated(c, gin.H{"fragment": fragment, "created": true})
}

func (kh *KnowledgeHandler) ListByTopic(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := kh.knowledge.ListByTopic(dbc, c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"fragments": rows})
}
