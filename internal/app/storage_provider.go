package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/batchflow-backend/internal/platform/gcp"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

var newReportStore = gcp.NewReportStore

type StorageBootstrapErrorCode string

const (
	StorageBootstrapErrorInvalidMode         StorageBootstrapErrorCode = "invalid_mode"
	StorageBootstrapErrorMissingBucket       StorageBootstrapErrorCode = "missing_bucket"
	StorageBootstrapErrorMissingEmulatorHost StorageBootstrapErrorCode = "missing_emulator_host"
	StorageBootstrapErrorInvalidEmulatorHost StorageBootstrapErrorCode = "invalid_emulator_host"
	StorageBootstrapErrorConnectFailed       StorageBootstrapErrorCode = "connect_failed"
)

type StorageBootstrapError struct {
	Code         StorageBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "report storage bootstrap failed"
	}
	return fmt.Sprintf(
		"report storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func resolveReportStore(ctx context.Context, log *logger.Logger, cfg Config) (*gcp.ReportStore, error) {
	storeCfg := cfg.reportStoreConfig()
	log.Info(
		"Selecting report storage",
		"mode", storeCfg.Mode,
		"emulator_host", storeCfg.EmulatorHost,
		"bucket", storeCfg.Bucket,
	)
	store, err := newReportStore(ctx, log, storeCfg)
	if err != nil {
		classified := classifyStorageBootstrapError(storeCfg, err)
		log.Error(
			"Report storage bootstrap failed",
			"mode", storeCfg.Mode,
			"emulator_host", storeCfg.EmulatorHost,
			"error_code", storageBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

func classifyStorageBootstrapError(storeCfg gcp.ReportStoreConfig, err error) error {
	out := &StorageBootstrapError{
		Code:         StorageBootstrapErrorConnectFailed,
		Mode:         string(storeCfg.Mode),
		EmulatorHost: storeCfg.EmulatorHost,
		Cause:        err,
	}
	var cfgErr *gcp.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ConfigErrorInvalidMode:
			out.Code = StorageBootstrapErrorInvalidMode
		case gcp.ConfigErrorMissingBucket:
			out.Code = StorageBootstrapErrorMissingBucket
		case gcp.ConfigErrorMissingEmulatorHost:
			out.Code = StorageBootstrapErrorMissingEmulatorHost
		case gcp.ConfigErrorInvalidEmulatorHost:
			out.Code = StorageBootstrapErrorInvalidEmulatorHost
		}
	}
	return out
}

func storageBootstrapErrorCode(err error) StorageBootstrapErrorCode {
	var bootstrapErr *StorageBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return StorageBootstrapErrorConnectFailed
}
