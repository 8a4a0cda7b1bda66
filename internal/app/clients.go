package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/batchflow-backend/internal/clients/redis"
	"github.com/yungbote/batchflow-backend/internal/clients/renderer"
	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/observability"
	"github.com/yungbote/batchflow-backend/internal/platform/gcp"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

type Clients struct {
	Redis       *goredis.Client
	Notifier    domainagg.Notifier
	Renderer    domainagg.Renderer
	ReportStore *gcp.ReportStore
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb, err := redis.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return out, fmt.Errorf("init redis notifier: %w", err)
		}
		out.Redis = rdb
		out.Notifier = redis.NewNotifier(log, rdb,
			redis.WithChannel(cfg.RedisNotifyChannel),
			redis.WithCounter(metrics),
		)
	} else {
		log.Warn("REDIS_ADDR not set; lifecycle notifications are logged only")
		out.Notifier = logNotifier{log: log.With("service", "LogNotifier")}
	}

	if !cfg.issuanceConfigured() {
		log.Warn("RENDERER_URL or REPORT_GCS_BUCKET_NAME not set; report issuance is disabled in this process")
		return out, nil
	}

	// Renderer
	rc, err := renderer.NewClient(log, cfg.RendererURL, cfg.RendererTimeout)
	if err != nil {
		return out, fmt.Errorf("init renderer client: %w", err)
	}
	out.Renderer = rc

	// Gcs
	store, err := resolveReportStore(ctx, log, cfg)
	if err != nil {
		return out, err
	}
	out.ReportStore = store
	return out, nil
}

// logNotifier stands in for Redis in local runs.
type logNotifier struct {
	log *logger.Logger
}

func (n logNotifier) Notify(_ context.Context, event domainagg.NotificationEvent, payload map[string]any) error {
	n.log.Info("notification", "event", string(event), "payload", payload)
	return nil
}
