package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
	"github.com/HaiderAli3D/LOKI-AI/internal/realtime"
	"github.com/HaiderAli3D/LOKI-AI/internal/requestdata"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// Events is the long-lived per-user SSE feed carrying session lifecycle
// and progress notifications.
func (rh *RealtimeHandler) Events(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	client := rh.hub.NewSSEClient(rd.UserID)
	rh.hub.AddChannel(client, rd.UserID.String())
	rh.log.Debug("events stream open", "user_id", rd.UserID)

	rh.hub.ServeHTTP(c.Writer, c.Request, client)

	rh.hub.CloseClient(client)
	rh.log.Debug("events stream closed", "user_id", rd.UserID)
}
