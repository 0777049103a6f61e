package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOARD_CONFIG_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.RulesEngine != EngineChess || cfg.Orientation != "white" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CaptureAnimation() != 180*time.Millisecond || cfg.MoveAnimation() != 250*time.Millisecond {
		t.Fatalf("animation defaults: %v %v", cfg.CaptureAnimation(), cfg.MoveAnimation())
	}
	if cfg.SessionTTL() != time.Hour {
		t.Fatalf("session ttl: %v", cfg.SessionTTL())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	body := []byte("listen_addr: \":9000\"\nrules_engine: dragontooth\nmove_animation_ms: 400\nallowed_origins: [a.example, b.example]\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOARD_CONFIG_FILE", path)
	t.Setenv("BOARD_LISTEN_ADDR", " :9100 ")
	t.Setenv("BOARD_CAPTURE_ANIMATION_MS", "not-a-number")
	t.Setenv("BOARD_DRAG_THRESHOLD_PX", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9100" {
		t.Fatalf("env should win over file: %q", cfg.ListenAddr)
	}
	if cfg.RulesEngine != EngineDragontooth || cfg.MoveAnimationMs != 400 || len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.CaptureAnimationMs != 180 {
		t.Fatalf("bad number should keep default, got %d", cfg.CaptureAnimationMs)
	}
	if cfg.DragThresholdPx != 8 {
		t.Fatalf("drag threshold: %v", cfg.DragThresholdPx)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown engine", map[string]string{"BOARD_RULES_ENGINE": "stockfish"}},
		{"sandbox without preset", map[string]string{"BOARD_RULES_ENGINE": "sandbox"}},
		{"bad orientation", map[string]string{"BOARD_ORIENTATION": "left"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BOARD_CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	t.Setenv("BOARD_RULES_ENGINE", "Sandbox")
	t.Setenv("BOARD_SANDBOX_PRESET", "drag-test")
	cfg, err := Load()
	if err != nil || cfg.RulesEngine != EngineSandbox {
		t.Fatalf("sandbox config: %+v %v", cfg, err)
	}
}

func TestMissingFile(t *testing.T) {
	t.Setenv("BOARD_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
