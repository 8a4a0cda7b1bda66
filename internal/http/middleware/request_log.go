package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Aggregate failures attached
// with c.Error are logged with their code so emission races are easy to grep.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}

		status := c.Writer.Status()
		ctx := c.Request.Context()
		td := ctxutil.GetTraceData(ctx)
		fields := []interface{}{
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", td.RequestID,
		}
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if actor, ok := ctxutil.GetActor(ctx); ok {
			fields = append(fields, "actor_id", actor.ID.String(), "role", string(actor.Role))
		}
		if code := errorCode(c); code != "" {
			fields = append(fields, "code", code)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, "error", errs.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}

// errorCode is the aggregate code of the last error a handler attached.
func errorCode(c *gin.Context) string {
	last := c.Errors.Last()
	if last == nil {
		return ""
	}
	return string(domainagg.CodeOf(last.Err))
}
