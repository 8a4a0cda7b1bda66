package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/http/response"
	"github.com/yungbote/batchflow-backend/internal/platform/ctxutil"
)

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err == nil && id == uuid.Nil {
		err = errors.New("id must not be nil")
	}
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func requestActor(c *gin.Context) (audit.ActorContext, bool) {
	actor, ok := ctxutil.GetActor(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorEnvelope{
			Error: response.APIError{Message: "unauthenticated", Code: "unauthenticated"},
		})
		return audit.ActorContext{}, false
	}
	return actor, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}

var errEmptyPatch = errors.New("no report changes provided")
