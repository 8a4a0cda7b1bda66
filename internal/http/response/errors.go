package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
)

var statusByCode = map[domainagg.ErrorCode]int{
	domainagg.CodeValidation:         http.StatusBadRequest,
	domainagg.CodeNotFound:           http.StatusNotFound,
	domainagg.CodeUnauthorized:       http.StatusForbidden,
	domainagg.CodeConflict:           http.StatusConflict,
	domainagg.CodeInvalidTransition:  http.StatusConflict,
	domainagg.CodeAlreadyRequested:   http.StatusConflict,
	domainagg.CodeAlreadyIssued:      http.StatusConflict,
	domainagg.CodeImmutableViolation: http.StatusConflict,
	domainagg.CodePreconditionFailed: http.StatusPreconditionFailed,
	domainagg.CodeInvariantViolation: http.StatusUnprocessableEntity,
	domainagg.CodeRetryable:          http.StatusServiceUnavailable,
	domainagg.CodeTransient:          http.StatusServiceUnavailable,
	domainagg.CodeCircuitOpen:        http.StatusServiceUnavailable,
	domainagg.CodeTimeout:            http.StatusGatewayTimeout,
}

// StatusFor maps an aggregate error code onto an HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// RespondAggregateError writes err using its aggregate code. Internal failures
// are logged by the request logger and never echo their cause to the client.
func RespondAggregateError(c *gin.Context, err error) {
	code := domainagg.CodeOf(err)
	if code == "" {
		code = domainagg.CodeInternal
	}
	status := StatusFor(code)
	_ = c.Error(err)

	msg := "internal error"
	var aggErr *domainagg.Error
	if status < http.StatusInternalServerError || code.Retryable() || code == domainagg.CodeCircuitOpen || code == domainagg.CodeTimeout {
		if errors.As(err, &aggErr) && aggErr.Message != "" {
			msg = aggErr.Message
		} else {
			msg = string(code)
		}
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: string(code)},
	})
}
