package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/HaiderAli3D/LOKI-AI/internal/http/response"
	"github.com/HaiderAli3D/LOKI-AI/internal/pkg/dbctx"
	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
	"github.com/HaiderAli3D/LOKI-AI/internal/requestdata"
	"github.com/HaiderAli3D/LOKI-AI/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (sh *SessionHandler) Start(c *gin.Context) {
	var req services.StartSessionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, messages, err := sh.sessions.Start(dbc, userID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"session": session, "messages": messages})
}

func (sh *SessionHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := sh.sessions.List(dbc, userID, limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": rows})
}

func (sh *SessionHandler) Transcript(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, messages, err := sh.sessions.Transcript(dbc, userID, sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session, "messages": messages})
}

func (sh *SessionHandler) Turn(c *gin.Context) {
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
	result, err := sh.sessions.Turn(dbc, userID, sessionID, req.Question)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (sh *SessionHandler) End(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, err := sh.sessions.End(dbc, userID, sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

func (sh *SessionHandler) Rate(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	var req struct {
		Proficiency int    `json:"proficiency"`
		Notes       string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	progress, err := sh.sessions.Rate(dbc, userID, sessionID, req.Proficiency, req.Notes)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": progress})
}

func (sh *SessionHandler) ClearHistory(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := sh.sessions.ClearHistory(dbc, userID, sessionID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
