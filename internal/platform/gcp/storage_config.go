package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

// ReportStoreConfig selects the bucket rendered reports are written to.
type ReportStoreConfig struct {
	Mode         StorageMode
	EmulatorHost string
	Bucket       string
	// Prefix is prepended to every object key; empty means "reports".
	Prefix string
	// Credentials is a service account key, inline JSON or a file path.
	// Empty falls back to application default credentials.
	Credentials string
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingBucket       ConfigErrorCode = "missing_bucket"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidEmulatorHost ConfigErrorCode = "invalid_emulator_host"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid report storage config"
	}
	switch e.Code {
	case ConfigErrorInvalidMode:
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Value, StorageModeGCS, StorageModeGCSEmulator)
	case ConfigErrorMissingBucket:
		return "REPORT_GCS_BUCKET_NAME is required"
	case ConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", StorageModeGCSEmulator)
	case ConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.Value)
	default:
		return "invalid report storage config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Normalize fills defaults and validates. An empty mode means emulator when a
// host is configured and real GCS otherwise.
func (c ReportStoreConfig) Normalize() (ReportStoreConfig, error) {
	c.Bucket = strings.TrimSpace(c.Bucket)
	c.EmulatorHost = strings.TrimRight(strings.TrimSpace(c.EmulatorHost), "/")
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), "/")
	if c.Prefix == "" {
		c.Prefix = "reports"
	}

	raw := string(c.Mode)
	switch StorageMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		if c.EmulatorHost != "" {
			c.Mode = StorageModeGCSEmulator
		} else {
			c.Mode = StorageModeGCS
		}
	case StorageModeGCS:
		c.Mode = StorageModeGCS
	case StorageModeGCSEmulator:
		c.Mode = StorageModeGCSEmulator
	default:
		return c, &ConfigError{Code: ConfigErrorInvalidMode, Value: raw}
	}

	if c.Bucket == "" {
		return c, &ConfigError{Code: ConfigErrorMissingBucket}
	}
	if c.Mode != StorageModeGCSEmulator {
		return c, nil
	}
	if c.EmulatorHost == "" {
		return c, &ConfigError{Code: ConfigErrorMissingEmulatorHost}
	}
	u, err := url.Parse(c.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return c, &ConfigError{Code: ConfigErrorInvalidEmulatorHost, Value: c.EmulatorHost, Cause: err}
	}
	return c, nil
}
