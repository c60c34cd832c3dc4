package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info(context.Background(), "profile applied", String("profile", "4g"), Int("step", 2))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", buf.String(), err)
	}
	if record["msg"] != "profile applied" {
		t.Errorf("msg = %v, want \"profile applied\"", record["msg"])
	}
	if record["profile"] != "4g" {
		t.Errorf("profile = %v, want 4g", record["profile"])
	}
	if record["step"] != float64(2) {
		t.Errorf("step = %v, want 2", record["step"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "text", Output: &buf})

	log.Debug(context.Background(), "dropped")
	log.Info(context.Background(), "also dropped")
	log.Warn(context.Background(), "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("sub-warn records emitted: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestWith_CarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf}).
		With(String("scenario", "wifi_drop"))

	log.Info(context.Background(), "step advanced")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["scenario"] != "wifi_drop" {
		t.Errorf("scenario = %v, want wifi_drop", record["scenario"])
	}
}

func TestEnsureRequestID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" {
		t.Fatalf("EnsureRequestID returned empty id")
	}
	if got := RequestIDFromContext(ctx); got != id {
		t.Errorf("RequestIDFromContext = %q, want %q", got, id)
	}

	// A second call keeps the existing id.
	ctx2, id2 := EnsureRequestID(ctx)
	if id2 != id {
		t.Errorf("EnsureRequestID regenerated id: %q != %q", id2, id)
	}
	if ctx2 != ctx {
		t.Errorf("context replaced even though id was present")
	}
}

func TestWithRequestLogger_AnnotatesID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, log := WithRequestLogger(context.Background(), base)
	log.Info(ctx, "handled")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["request_id"] != RequestIDFromContext(ctx) {
		t.Errorf("request_id = %v, want %q", record["request_id"], RequestIDFromContext(ctx))
	}
}

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Errorf("bare context returned a logger")
	}

	log := Noop()
	ctx := ContextWithLogger(context.Background(), log)
	if LoggerFromContext(ctx) == nil {
		t.Errorf("stored logger not returned")
	}
}

func TestNoop_IsSilentAndChainable(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Debug(context.Background(), "x")
	log.Error(context.Background(), "x")
}
