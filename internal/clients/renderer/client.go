package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

// HashHeader carries the hex sha256 of the response body.
const HashHeader = "X-Content-SHA256"

const maxBodyBytes = 64 << 20

type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("renderer http %d: %s", e.Status, e.Body)
}

// StatusCode lets the retry classifier treat 5xx/429 as transient.
func (e *HTTPError) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.Status
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

var _ domainagg.Renderer = (*Client)(nil)

func NewClient(log *logger.Logger, baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing RENDERER_URL")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		log:        log.With("client", "RendererClient"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type renderRequest struct {
	ReportID uuid.UUID `json:"report_id"`
}

// Render is a single attempt; retries belong to the caller's executor.
func (c *Client) Render(ctx context.Context, reportID uuid.UUID) ([]byte, string, error) {
	payload, err := json.Marshal(renderRequest{ReportID: reportID})
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read render body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &HTTPError{Status: resp.StatusCode, Body: truncate(string(raw), 512)}
	}
	hash := strings.ToLower(strings.TrimSpace(resp.Header.Get(HashHeader)))
	if hash == "" {
		return nil, "", fmt.Errorf("renderer response missing %s", HashHeader)
	}
	c.log.Debug("report rendered", "report_id", reportID, "bytes", len(raw))
	return raw, hash, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
