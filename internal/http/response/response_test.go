package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaiderAli3D/LOKI-AI/internal/platform/apierr"
)

func TestRespondAPIErrorMapsServiceErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not_found", apierr.NotFound(errors.New("session missing")), http.StatusNotFound, apierr.CodeNotFound},
		{"forbidden", apierr.Forbidden(errors.New("not yours")), http.StatusForbidden, apierr.CodeForbidden},
		{"invalid", apierr.Invalid(errors.New("bad mode")), http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"session_closed", apierr.New(http.StatusConflict, apierr.CodeSessionClosed, errors.New("closed")), http.StatusConflict, apierr.CodeSessionClosed},
		{"plain_error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			RespondAPIError(c, tc.err)

			require.Equal(t, tc.wantStatus, rec.Code)
			var envelope ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, tc.wantCode, envelope.Error.Code)
			assert.NotEmpty(t, envelope.Error.Message)
		})
	}
}

func TestRespondErrorNilErr(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, nil)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "unknown error", envelope.Error.Message)
}
