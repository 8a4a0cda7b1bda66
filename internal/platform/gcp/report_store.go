package gcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

const ReportContentType = "application/pdf"

var ErrForeignBucket = errors.New("storage ref points at another bucket")

// ReportStore writes rendered report documents to a single bucket. Objects
// are created with a does-not-exist precondition so a replayed Store never
// overwrites an earlier rendering.
type ReportStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

func NewReportStore(ctx context.Context, log *logger.Logger, cfg ReportStoreConfig) (*ReportStore, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	serviceLog := log.With("service", "ReportStore")
	serviceLog.Info("Report storage initialized",
		"mode", cfg.Mode,
		"emulator_host", cfg.EmulatorHost,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
	)
	return &ReportStore{log: serviceLog, client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func newStorageClient(ctx context.Context, cfg ReportStoreConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case StorageModeGCS:
		opts := credentialOptions(cfg.Credentials)
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case StorageModeGCSEmulator:
		// The storage client only honours the emulator through this variable.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ConfigError{Code: ConfigErrorInvalidMode, Value: string(cfg.Mode)}
	}
}

func (s *ReportStore) objectKey(reportID uuid.UUID) string {
	return s.prefix + "/" + reportID.String() + ".pdf"
}

// Store uploads content and returns a gs:// reference.
func (s *ReportStore) Store(ctx context.Context, reportID uuid.UUID, content []byte) (string, error) {
	if reportID == uuid.Nil {
		return "", errors.New("report id is required")
	}
	key := s.objectKey(reportID)
	ref := FormatStorageRef(s.bucket, key)
	sum := sha256.Sum256(content)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = ReportContentType
	w.Metadata = map[string]string{
		"report_id": reportID.String(),
		"sha256":    hex.EncodeToString(sum[:]),
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write report object: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			// Already written by an earlier attempt; the caller verifies the hash.
			s.log.Info("report object already stored", "report_id", reportID, "ref", ref)
			return ref, nil
		}
		return "", fmt.Errorf("close report writer: %w", err)
	}
	return ref, nil
}

func (s *ReportStore) Fetch(ctx context.Context, storageRef string) ([]byte, error) {
	bucket, key, err := ParseStorageRef(storageRef)
	if err != nil {
		return nil, err
	}
	if bucket != s.bucket {
		return nil, fmt.Errorf("%w: %s", ErrForeignBucket, bucket)
	}
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open report object %q: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *ReportStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func FormatStorageRef(bucket, key string) string {
	return "gs://" + bucket + "/" + strings.TrimLeft(key, "/")
}

func ParseStorageRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), "gs://")
	if !ok {
		return "", "", fmt.Errorf("storage ref %q: missing gs:// scheme", ref)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("storage ref %q: want gs://bucket/key", ref)
	}
	return bucket, key, nil
}
