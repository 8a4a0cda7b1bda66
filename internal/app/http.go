package app

import (
	"context"

	httpx "github.com/yungbote/batchflow-backend/internal/http"
	httpH "github.com/yungbote/batchflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/batchflow-backend/internal/http/middleware"
	"github.com/yungbote/batchflow-backend/internal/services"
)

func (a *App) newServer() *httpx.Server {
	a.Log.Info("Wiring handlers...")
	auth := services.NewAuthService(a.Log, a.Cfg.JWTSecretKey, a.Cfg.JWTIssuer, a.Cfg.AccessTokenTTL)
	serviceName := ""
	if a.Cfg.OtelEnabled {
		serviceName = a.Cfg.OtelServiceName
	}
	return httpx.NewServer(httpx.RouterConfig{
		Log:         a.Log,
		Metrics:     a.Metrics,
		ServiceName: serviceName,
		CORSOrigins: a.Cfg.CORSOrigins,

		AuthMiddleware: httpMW.NewAuthMiddleware(a.Log, auth),

		BatchHandler:      httpH.NewBatchHandler(a.Repos.Batches, a.Aggregates.Authorizer, a.Aggregates.Lifecycle, a.Aggregates.Emission),
		AssessmentHandler: httpH.NewAssessmentHandler(a.Aggregates.Assessment),
		ReportHandler:     httpH.NewReportHandler(a.Aggregates.Report),
		HealthHandler:     httpH.NewHealthHandler(a.readinessChecks()...),
	})
}

func (a *App) readinessChecks() []httpH.ReadinessCheck {
	checks := []httpH.ReadinessCheck{{Name: "database", Check: a.DB.Ping}}
	if a.redis != nil {
		checks = append(checks, httpH.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}})
	}
	return checks
}
