package logger

import (
	"strings"
	"testing"
)

func TestScrubberRedactsAndHashes(t *testing.T) {
	s := &scrubber{enabled: true, salt: "pepper"}
	out := s.kvs([]interface{}{
		"authorization", "Bearer abc",
		"actor_id", "5b0c1a3e-0000-0000-0000-000000000001",
		"batch_id", "b-1",
	})
	if len(out) != 6 {
		t.Fatalf("len: want=6 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("authorization: want=[REDACTED] got=%v", out[1])
	}
	hashed, _ := out[3].(string)
	if !strings.HasPrefix(hashed, "hash:") || len(hashed) != len("hash:")+12 {
		t.Fatalf("actor_id: want hash:<12 hex> got=%v", out[3])
	}
	if out[5] != "b-1" {
		t.Fatalf("batch_id: want=b-1 got=%v", out[5])
	}
}

func TestScrubberSaltChangesDigest(t *testing.T) {
	a := (&scrubber{enabled: true, salt: "a"}).digest("employee-1")
	b := (&scrubber{enabled: true, salt: "b"}).digest("employee-1")
	if a == b {
		t.Fatalf("digest: want salt dependent, got %s twice", a)
	}
}

func TestScrubberDisabledPassesThrough(t *testing.T) {
	kv := []interface{}{"token", "abc"}
	if out := (&scrubber{}).kvs(kv); out[1] != "abc" {
		t.Fatalf("disabled: want passthrough got=%v", out[1])
	}
}

func TestScrubberKeepsDanglingKey(t *testing.T) {
	out := (&scrubber{enabled: true}).kvs([]interface{}{"op", "x", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestScrubberRedactsJWTLikeStrings(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	if got := (&scrubber{enabled: true}).value("note", jwt); got != "[REDACTED]" {
		t.Fatalf("jwt-like value: want=[REDACTED] got=%v", got)
	}
}
