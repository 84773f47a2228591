package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const DefaultFileName = "config.yaml"

// EnvPrefix scopes environment overrides, e.g. RECORDER_LOGGING__LEVEL=debug.
const EnvPrefix = "RECORDER_"

// Config captures the user-adjustable knobs for the recorder.
type Config struct {
	Paths     PathsConfig     `koanf:"paths"`
	Recording RecordingConfig `koanf:"recording"`
	Control   ControlConfig   `koanf:"control"`
	Registry  RegistryConfig  `koanf:"registry"`
	Logging   LoggingConfig   `koanf:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `koanf:"-"`
}

// PathsConfig controls filesystem locations used by the recorder.
type PathsConfig struct {
	DataDir string `koanf:"data_dir"`
}

// RecordingConfig tunes the capture pipeline.
type RecordingConfig struct {
	// OutputDir is where session log files land when the caller supplies a
	// bare file name instead of a full path.
	OutputDir string `koanf:"output_dir"`

	// QueueSoftLimit bounds pending events; 0 means unbounded. When the
	// limit is hit the oldest pending event is dropped and counted, never
	// blocking the capture callback.
	QueueSoftLimit int `koanf:"queue_soft_limit"`

	// MoveThrottleMillis coalesces mouse-move samples arriving within the
	// window; 0 disables coalescing.
	MoveThrottleMillis int `koanf:"move_throttle_ms"`

	// FlushEvery forces a writer flush after this many rows in addition to
	// the idle and session-end flushes.
	FlushEvery int `koanf:"flush_every"`
}

// ControlConfig describes the local control API endpoint.
type ControlConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// RegistryConfig locates the sqlite session index.
type RegistryConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			DataDir: "data",
		},
		Recording: RecordingConfig{
			OutputDir:          filepath.Join("data", "recordings"),
			QueueSoftLimit:     0,
			MoveThrottleMillis: 0,
			FlushEvery:         64,
		},
		Control: ControlConfig{
			ListenAddr: "127.0.0.1:7430",
		},
		Registry: RegistryConfig{
			Path: filepath.Join("data", "sessions.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// Load reads configuration from disk if present, layering RECORDER_* env
// overrides on top. When path is empty, the loader attempts to read
// ./config.yaml but tolerates a missing file.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	k := koanf.New(".")

	if _, err := os.Stat(candidate); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("stat config file %q: %w", candidate, err)
		}
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
	} else {
		if err := k.Load(file.Provider(candidate), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", candidate, err)
		}
		cfg.Source = candidate
	}

	// Double underscore separates sections so leaf keys keep their own
	// underscores: RECORDER_RECORDING__QUEUE_SOFT_LIMIT -> recording.queue_soft_limit.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return cfg, fmt.Errorf("load env overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decode configuration: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Recording.OutputDir) == "" {
		return errors.New("recording.output_dir must not be empty")
	}
	if c.Recording.QueueSoftLimit < 0 {
		return errors.New("recording.queue_soft_limit must not be negative")
	}
	if c.Recording.MoveThrottleMillis < 0 {
		return errors.New("recording.move_throttle_ms must not be negative")
	}
	if c.Recording.FlushEvery <= 0 {
		return errors.New("recording.flush_every must be positive")
	}
	if strings.TrimSpace(c.Control.ListenAddr) == "" {
		return errors.New("control.listen_addr must not be empty")
	}
	if strings.TrimSpace(c.Registry.Path) == "" {
		return errors.New("registry.path must not be empty")
	}

	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}

	return nil
}

func (c *Config) normalize() {
	c.Paths.DataDir = filepath.Clean(strings.TrimSpace(c.Paths.DataDir))

	defaults := Default()

	if c.Paths.DataDir == "." || c.Paths.DataDir == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
	}
	if strings.TrimSpace(c.Recording.OutputDir) == "" {
		c.Recording.OutputDir = filepath.Join(c.Paths.DataDir, "recordings")
	}
	if strings.TrimSpace(c.Registry.Path) == "" {
		c.Registry.Path = filepath.Join(c.Paths.DataDir, "sessions.db")
	}
	if c.Recording.FlushEvery <= 0 {
		c.Recording.FlushEvery = defaults.Recording.FlushEvery
	}
	if strings.TrimSpace(c.Control.ListenAddr) == "" {
		c.Control.ListenAddr = defaults.Control.ListenAddr
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
