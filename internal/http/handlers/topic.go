package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HaiderAli3D/LOKI-AI/internal/http/response"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/services"
)

type TopicHandler struct {
	topics services.TopicService
}

func NewTopicHandler(topics services.TopicService) *TopicHandler {
	return &TopicHandler{topics: topics}
}

func (th *TopicHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"topics": th.topics.All()})
}

func (th *TopicHandler) Get(c *gin.Context) {
	id := c.Param("id")
	topic, ok := th.topics.Get(id)
	if !ok {
		response.RespondError(c, http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("unknown topic %q", id))
		return
	}
	response.RespondOK(c, gin.H{"topic": topic})
}
