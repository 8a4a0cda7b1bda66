package gcp

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestReportStoreConfigNormalize(t *testing.T) {
	cases := []struct {
		name     string
		in       ReportStoreConfig
		wantMode StorageMode
		wantCode ConfigErrorCode
	}{
		{name: "default gcs", in: ReportStoreConfig{Bucket: "reports"}, wantMode: StorageModeGCS},
		{name: "host implies emulator", in: ReportStoreConfig{Bucket: "reports", EmulatorHost: "http://fake-gcs:4443/"}, wantMode: StorageModeGCSEmulator},
		{name: "explicit gcs ignores host", in: ReportStoreConfig{Mode: "GCS", Bucket: "reports", EmulatorHost: "http://fake-gcs:4443"}, wantMode: StorageModeGCS},
		{name: "invalid mode", in: ReportStoreConfig{Mode: "local", Bucket: "reports"}, wantCode: ConfigErrorInvalidMode},
		{name: "missing bucket", in: ReportStoreConfig{}, wantCode: ConfigErrorMissingBucket},
		{name: "emulator without host", in: ReportStoreConfig{Mode: StorageModeGCSEmulator, Bucket: "reports"}, wantCode: ConfigErrorMissingEmulatorHost},
		{name: "emulator bad host", in: ReportStoreConfig{Mode: StorageModeGCSEmulator, Bucket: "reports", EmulatorHost: "fake-gcs:4443"}, wantCode: ConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.Normalize()
			if tc.wantCode != "" {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("Normalize: want ConfigError got=%v", err)
				}
				if cfgErr.Code != tc.wantCode {
					t.Fatalf("code: want=%q got=%q", tc.wantCode, cfgErr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got.Mode != tc.wantMode {
				t.Fatalf("mode: want=%q got=%q", tc.wantMode, got.Mode)
			}
			if got.Prefix != "reports" {
				t.Fatalf("prefix: want=%q got=%q", "reports", got.Prefix)
			}
		})
	}
}

func TestStorageRefRoundTrip(t *testing.T) {
	s := &ReportStore{bucket: "bf-reports", prefix: "tenant-a/reports"}
	id := uuid.New()
	ref := FormatStorageRef(s.bucket, s.objectKey(id))
	if want := "gs://bf-reports/tenant-a/reports/" + id.String() + ".pdf"; ref != want {
		t.Fatalf("ref: want=%q got=%q", want, ref)
	}
	bucket, key, err := ParseStorageRef(ref)
	if err != nil {
		t.Fatalf("ParseStorageRef: %v", err)
	}
	if bucket != "bf-reports" || key != s.objectKey(id) {
		t.Fatalf("parsed: bucket=%q key=%q", bucket, key)
	}

	for _, bad := range []string{"", "s3://x/y", "gs://", "gs://bucket", "gs://bucket/"} {
		if _, _, err := ParseStorageRef(bad); err == nil {
			t.Fatalf("ParseStorageRef(%q): expected error", bad)
		}
	}
}

func TestCredentialOptions(t *testing.T) {
	if got := credentialOptions("  "); got != nil {
		t.Fatalf("blank: want nil got=%d options", len(got))
	}
	if got := credentialOptions(`{"type":"service_account"}`); len(got) != 1 {
		t.Fatalf("inline json: want=1 got=%d", len(got))
	}
	if got := credentialOptions("/var/run/secrets/gcp/key.json"); len(got) != 1 {
		t.Fatalf("key file: want=1 got=%d", len(got))
	}
}
