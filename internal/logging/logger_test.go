package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"cloudpico-station/internal/config"
)

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo, StationID: "roof"}

	logger := newWithWriter(&buf, cfg, "1.2.3", "station")
	logger.Info("hello", "cycle", 1)
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	for key, want := range map[string]any{"msg": "hello", "app": "station", "version": "1.2.3", "env": "prod", "station_id": "roof"} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %v", key, rec[key], want)
		}
	}
}

func TestNew_DevUsesTint(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug, StationID: "home"}

	logger := newWithWriter(&buf, cfg, "dev", "station")
	logger.Debug("tick")

	out := buf.String()
	if !strings.Contains(out, "tick") {
		t.Errorf("output missing message; got %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("dev output looks like JSON; got %q", out)
	}
}
