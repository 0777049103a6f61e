package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EngineChess       = "chess"
	EngineDragontooth = "dragontooth"
	EngineSandbox     = "sandbox"
)

type AppConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	RulesEngine   string `yaml:"rules_engine"`
	SandboxPreset string `yaml:"sandbox_preset"`
	StartFEN      string `yaml:"start_fen"`
	Orientation   string `yaml:"orientation"`

	BoardPixels        float64 `yaml:"board_pixels"`
	DragThresholdPx    float64 `yaml:"drag_threshold_px"`
	CaptureAnimationMs int     `yaml:"capture_animation_ms"`
	MoveAnimationMs    int     `yaml:"move_animation_ms"`

	RedisURL      string `yaml:"redis_url"`
	SessionTTLSec int    `yaml:"session_ttl_sec"`

	DatabaseURL  string `yaml:"database_url"`
	PuzzleAPIURL string `yaml:"puzzle_api_url"`
	PuzzleSeed   string `yaml:"puzzle_seed_file"`

	MessagesDir string `yaml:"messages_dir"`
}

func defaults() *AppConfig {
	return &AppConfig{
		ListenAddr:         ":8080",
		RulesEngine:        EngineChess,
		Orientation:        "white",
		BoardPixels:        480,
		DragThresholdPx:    5,
		CaptureAnimationMs: 180,
		MoveAnimationMs:    250,
		SessionTTLSec:      3600,
	}
}

// Load reads BOARD_CONFIG_FILE (optional YAML) and then the environment;
// environment values win.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("BOARD_CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	setString(&c.ListenAddr, "BOARD_LISTEN_ADDR")
	setString(&c.RulesEngine, "BOARD_RULES_ENGINE")
	setString(&c.SandboxPreset, "BOARD_SANDBOX_PRESET")
	setString(&c.StartFEN, "BOARD_START_FEN")
	setString(&c.Orientation, "BOARD_ORIENTATION")

	if v := strings.TrimSpace(os.Getenv("BOARD_ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = nil
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, s)
			}
		}
	}

	setFloat(&c.BoardPixels, "BOARD_PIXELS")
	setFloat(&c.DragThresholdPx, "BOARD_DRAG_THRESHOLD_PX")
	setInt(&c.CaptureAnimationMs, "BOARD_CAPTURE_ANIMATION_MS")
	setInt(&c.MoveAnimationMs, "BOARD_MOVE_ANIMATION_MS")

	setString(&c.RedisURL, "REDIS_URL")
	setInt(&c.SessionTTLSec, "BOARD_SESSION_TTL")

	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.PuzzleAPIURL, "PUZZLE_API_URL")
	setString(&c.PuzzleSeed, "PUZZLE_SEED_FILE")
	setString(&c.MessagesDir, "MSGCAT_DIR")
}

func (c *AppConfig) validate() error {
	c.RulesEngine = strings.ToLower(c.RulesEngine)
	switch c.RulesEngine {
	case EngineChess, EngineDragontooth:
	case EngineSandbox:
		if c.SandboxPreset == "" {
			return errors.New("BOARD_SANDBOX_PRESET is required for the sandbox engine")
		}
	default:
		return fmt.Errorf("unknown BOARD_RULES_ENGINE %q", c.RulesEngine)
	}
	c.Orientation = strings.ToLower(c.Orientation)
	if c.Orientation != "white" && c.Orientation != "black" {
		return fmt.Errorf("BOARD_ORIENTATION must be white or black, got %q", c.Orientation)
	}
	return nil
}

func (c *AppConfig) CaptureAnimation() time.Duration {
	return time.Duration(c.CaptureAnimationMs) * time.Millisecond
}

func (c *AppConfig) MoveAnimation() time.Duration {
	return time.Duration(c.MoveAnimationMs) * time.Millisecond
}

func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// 잘못된 숫자는 무시하고 기본값 유지
func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			*dst = f
		}
	}
}
