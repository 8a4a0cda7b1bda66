package gcp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

func TestReportStoreEmulatorWriteOnce(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("BF_RUN_GCS_EMULATOR_INTEGRATION")), "true") {
		t.Skip("set BF_RUN_GCS_EMULATOR_INTEGRATION=true to run emulator integration tests")
	}
	host := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST"))
	if host == "" {
		host = "http://127.0.0.1:4443"
	}
	host = strings.TrimRight(host, "/")
	if !emulatorReachable(host) {
		t.Skipf("storage emulator not reachable at %s", host)
	}

	bucket := fmt.Sprintf("bf-it-reports-%d", time.Now().UnixNano())
	createEmulatorBucket(t, host, bucket)

	ctx := context.Background()
	store, err := NewReportStore(ctx, logger.Nop(), ReportStoreConfig{
		Mode:         StorageModeGCSEmulator,
		EmulatorHost: host,
		Bucket:       bucket,
	})
	if err != nil {
		t.Fatalf("NewReportStore: %v", err)
	}
	defer store.Close()

	id := uuid.New()
	first := []byte("%PDF-1.7 first")
	ref, err := store.Store(ctx, id, first)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	again, err := store.Store(ctx, id, []byte("%PDF-1.7 second"))
	if err != nil {
		t.Fatalf("Store replay: %v", err)
	}
	if again != ref {
		t.Fatalf("replay ref: want=%q got=%q", ref, again)
	}
	got, err := store.Fetch(ctx, ref)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Fatalf("content: want=%q got=%q", first, got)
	}
	if _, err := store.Fetch(ctx, FormatStorageRef("other-bucket", "x.pdf")); err == nil {
		t.Fatalf("Fetch foreign bucket: expected error")
	}
}

func emulatorReachable(host string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(host + "/storage/v1/b")
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 500
}

func createEmulatorBucket(t *testing.T, host, bucket string) {
	t.Helper()
	body := strings.NewReader(fmt.Sprintf(`{"name":%q}`, bucket))
	resp, err := http.Post(host+"/storage/v1/b?project=test", "application/json", body)
	if err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		t.Fatalf("create bucket status: %d", resp.StatusCode)
	}
}
