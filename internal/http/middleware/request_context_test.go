package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/platform/ctxutil"
)

func TestAttachRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var (
		gotTrace ctxutil.TraceData
		gotMeta  audit.RequestMeta
	)
	r := gin.New()
	r.Use(AttachRequestContext())
	r.GET("/x", func(c *gin.Context) {
		gotTrace = ctxutil.GetTraceData(c.Request.Context())
		gotMeta = ctxutil.GetRequestMeta(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-42")
	req.Header.Set("User-Agent", "clinic-portal/2.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if gotTrace.RequestID != "req-42" || gotMeta.RequestID != "req-42" {
		t.Fatalf("request id: trace=%q meta=%q", gotTrace.RequestID, gotMeta.RequestID)
	}
	if gotTrace.TraceID == "" || w.Header().Get(headerTraceID) != gotTrace.TraceID {
		t.Fatalf("trace id: ctx=%q header=%q", gotTrace.TraceID, w.Header().Get(headerTraceID))
	}
	if gotMeta.UserAgent != "clinic-portal/2.1" || gotMeta.ClientIP == "" {
		t.Fatalf("meta: got=%+v", gotMeta)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get(headerRequestID) == "" || w.Header().Get(headerRequestID) == "req-42" {
		t.Fatalf("generated request id: got=%q", w.Header().Get(headerRequestID))
	}
}
