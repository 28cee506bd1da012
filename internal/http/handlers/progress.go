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

type ProgressHandler struct {
	progress services.ProgressService
}

func NewProgressHandler(progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

func (ph *ProgressHandler) List(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := ph.progress.List(dbc, userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": rows})
}

func (ph *ProgressHandler) Summary(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	summary, err := ph.progress.Summary(dbc, userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summary": summary})
}

func (ph *ProgressHandler) Get(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	row, err := ph.progress.Get(dbc, userID, c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": row})
}

func (ph *ProgressHandler) Set(c *gin.Context) {
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
	row, err := ph.progress.SetProficiency(dbc, userID, c.Param("id"), req.Proficiency, req.Notes)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": row})
}
