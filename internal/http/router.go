package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/batchflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/batchflow-backend/internal/http/middleware"
	"github.com/yungbote/batchflow-backend/internal/observability"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	BatchHandler      *httpH.BatchHandler
	AssessmentHandler *httpH.AssessmentHandler
	ReportHandler     *httpH.ReportHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins...))
	r.Use(httpMW.Metrics(cfg.Metrics, "/healthcheck", "/readyz"))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Batches
		if cfg.BatchHandler != nil {
			protected.POST("/batches", cfg.BatchHandler.Create)
			protected.GET("/batches/:id", cfg.BatchHandler.Get)
			protected.POST("/batches/:id/assessments", cfg.BatchHandler.ReleaseAssessment)
			protected.POST("/batches/:id/recompute", cfg.BatchHandler.Recompute)
			protected.POST("/batches/:id/emission", cfg.BatchHandler.RequestEmission)
			protected.POST("/batches/:id/emergency", cfg.BatchHandler.SetEmergencyOverride)
		}

		// Assessments
		if cfg.AssessmentHandler != nil {
			protected.POST("/assessments/:id/responses", cfg.AssessmentHandler.RecordResponses)
			protected.POST("/assessments/:id/transition", cfg.AssessmentHandler.Transition)
		}

		// Reports
		if cfg.ReportHandler != nil {
			protected.PATCH("/reports/:id", cfg.ReportHandler.Update)
			protected.POST("/reports/:id/hash", cfg.ReportHandler.BackfillHash)
		}
	}

	return r
}
