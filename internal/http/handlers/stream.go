package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/HaiderAli3D/LOKI-AI/internal/http/response"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/logger"
	"github.com/HaiderAli3D/LOKI-AI/internal/requestdata"
	"github.com/HaiderAli3D/LOKI-AI/internal/services"
)

type StreamHandler struct {
	log     *logger.Logger
	streams services.StreamService
}

func NewStreamHandler(log *logger.Logger, streams services.StreamService) *StreamHandler {
	return &StreamHandler{log: log.With("handler", "StreamHandler"), streams: streams}
}

// Begin parks a streaming turn and hands back the request id the client
// opens the SSE attach with.
func (sh *StreamHandler) Begin(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	requestID, err := sh.streams.Begin(dbc, userID, sessionID, req.Question)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"request_id": requestID})
}

// Attach consumes the pending request and relays model output as SSE
// frames until the terminal done or error event.
func (sh *StreamHandler) Attach(c *gin.Context) {
	requestID := c.Param("request_id")
	userID := requestdata.UserID(c.Request.Context())

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.RespondError(c, http.StatusInternalServerError, "streaming_unsupported", fmt.Errorf("streaming unsupported"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := func(ev services.StreamEvent) error {
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", raw); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := sh.streams.Attach(dbc, userID, requestID, sink); err != nil {
		// Headers are already on the wire; the terminal error event was
		// delivered by the service.
		sh.log.Warn("stream attach ended with error", "request_id", requestID, "error", err)
	}
}
