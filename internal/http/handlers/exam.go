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

type ExamHandler struct {
	exams services.ExamService
}

func NewExamHandler(exams services.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

func (eh *ExamHandler) Start(c *gin.Context) {
	var req services.StartExamInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	attempt, questions, err := eh.exams.Start(dbc, userID, req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"attempt_id": attempt.ID,
		"topic_id":   attempt.TopicID,
		"questions":  questions,
		"started_at": attempt.StartedAt,
	})
}

func (eh *ExamHandler) SubmitAnswer(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	var req struct {
		QuestionIndex int    `json:"question_index"`
		Answer        string `json:"answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	attempt, err := eh.exams.SubmitAnswer(dbc, userID, attemptID, req.QuestionIndex, req.Answer)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"attempt_id": attempt.ID, "answers": attempt.Answers})
}

func (eh *ExamHandler) Complete(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	result, err := eh.exams.Complete(dbc, userID, attemptID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (eh *ExamHandler) Get(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	attempt, err := eh.exams.Get(dbc, userID, attemptID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"attempt": attempt})
}

func (eh *ExamHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := eh.exams.List(dbc, userID, limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"attempts": rows})
}

func (eh *ExamHandler) Stats(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	stats, err := eh.exams.Stats(dbc, userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}
