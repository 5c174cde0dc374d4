package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestFromContextInjectsKeys(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")
	defer Init("info", "json")

	ctx := WithContext(context.Background(), RequestIDKey, "req-1")
	ctx = WithContext(ctx, SectionIndexKey, 2)
	Info(ctx, "section started", "mode", "contextual")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if rec["request_id"] != "req-1" {
		t.Fatalf("request_id=%v", rec["request_id"])
	}
	if rec["section_index"] != float64(2) {
		t.Fatalf("section_index=%v", rec["section_index"])
	}
	if rec["mode"] != "contextual" {
		t.Fatalf("mode=%v", rec["mode"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q)=%s want %s", in, got, want)
		}
	}
}
