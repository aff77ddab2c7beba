package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// Camera types.
const (
	CameraRemoteGPIO = "remote_gpio"
)

// ServerConfig configures the web server.
type ServerConfig struct {
	Port             int `yaml:"port"`
	InstanceTTLSec   int `yaml:"instance_ttl_sec"`   // idle widgets are disposed after this
	SweepIntervalSec int `yaml:"sweep_interval_sec"` // how often idle widgets are looked for
}

// GestureConfig tunes the input controllers.
type GestureConfig struct {
	Sensitivity float64 `yaml:"sensitivity"` // px a drag move must exceed to step a frame
}

// SpinnerConfig is one catalog entry.
type SpinnerConfig struct {
	ID         string `yaml:"id"`
	Title      string `yaml:"title"`
	Dir        string `yaml:"dir"`
	StartFrame int    `yaml:"start_frame"`
}

// CatalogConfig lists the served spinners.
type CatalogConfig struct {
	Root     string          `yaml:"root"`      // relative paths start at the config file
	MaxWidth int             `yaml:"max_width"` // 0 = serve frames at full size
	Spinners []SpinnerConfig `yaml:"spinners"`
}

// StoreConfig configures the SQLite state store. Empty path disables it.
type StoreConfig struct {
	Path         string `yaml:"path"`
	RestoreAngle bool   `yaml:"restore_angle"` // new widgets open at the last saved frame
}

// JournalConfig configures the input journal. Empty dir disables it.
type JournalConfig struct {
	Dir string `yaml:"dir"`
}

// StepperConfig holds the configuration for a stepper motor.
type StepperConfig struct {
	StepPin       int `yaml:"step_pin"`
	DirPin        int `yaml:"dir_pin"`
	EnablePin     int `yaml:"enable_pin"` // BCM pin, 0 = not used. Active LOW.
	StepsPerRev   int `yaml:"steps_per_rev"`
	Microstepping int `yaml:"microstepping"`
}

// TurntableConfig describes the motorised table.
type TurntableConfig struct {
	Enabled bool          `yaml:"enabled"`
	Follow  string        `yaml:"follow"` // catalog spinner whose widgets drive the table
	Stepper StepperConfig `yaml:"stepper"`
}

// CameraConfig describes how to trigger the camera during a capture.
type CameraConfig struct {
	Type            string `yaml:"type"`
	FocusPin        int    `yaml:"focus_pin"`
	ShutterPin      int    `yaml:"shutter_pin"`
	FocusDelayMs    int    `yaml:"focus_delay_ms"`
	ShutterDelayMs  int    `yaml:"shutter_delay_ms"`
	SettleDelayMs   int    `yaml:"settle_delay_ms"`    // after a move, before the shot
	PostShotDelayMs int    `yaml:"post_shot_delay_ms"` // after the shot, before the next move
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	MoveSpeedMs int  `yaml:"move_speed_ms"` // duration of one STEP pulse
	DebugLevel  int  `yaml:"debug_level"`   // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO    bool `yaml:"mock_gpio"`     // true when no Raspberry Pi is attached
}

// Config aggregates all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gesture   GestureConfig   `yaml:"gesture"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Store     StoreConfig     `yaml:"store"`
	Journal   JournalConfig   `yaml:"journal"`
	Turntable TurntableConfig `yaml:"turntable"`
	Camera    CameraConfig    `yaml:"camera"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files directly inside a configs/
// directory.
func ValidateConfigPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q: extension must be .yaml", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("config path %q: %w", path, err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q: file must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	base := filepath.Dir(path)
	if !filepath.IsAbs(cfg.Catalog.Root) {
		cfg.Catalog.Root = filepath.Join(base, cfg.Catalog.Root)
	}
	if cfg.Store.Path != ":memory:" {
		cfg.Store.Path = resolve(base, cfg.Store.Path)
	}
	cfg.Journal.Dir = resolve(base, cfg.Journal.Dir)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve makes a relative path relative to base. Empty paths stay empty.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func (c *Config) applyDefaults() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.InstanceTTLSec <= 0 {
		c.Server.InstanceTTLSec = 600
	}
	if c.Server.SweepIntervalSec <= 0 {
		c.Server.SweepIntervalSec = 60
	}

	if c.Gesture.Sensitivity < 0 {
		return fmt.Errorf("gesture.sensitivity must be >= 0, got %.2f", c.Gesture.Sensitivity)
	}
	if c.Gesture.Sensitivity == 0 {
		c.Gesture.Sensitivity = 1
	}

	if c.Catalog.MaxWidth < 0 {
		return fmt.Errorf("catalog.max_width must be >= 0, got %d", c.Catalog.MaxWidth)
	}
	seen := make(map[string]bool)
	for i, s := range c.Catalog.Spinners {
		if s.ID == "" {
			return fmt.Errorf("catalog.spinners[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("catalog.spinners[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if s.Dir == "" {
			return fmt.Errorf("catalog.spinners[%d].dir is required", i)
		}
		if s.StartFrame < 0 {
			return fmt.Errorf("catalog.spinners[%d].start_frame must be >= 0", i)
		}
		if s.Title == "" {
			c.Catalog.Spinners[i].Title = s.ID
		}
	}

	if c.Turntable.Stepper.StepsPerRev <= 0 {
		c.Turntable.Stepper.StepsPerRev = 200
	}
	if c.Turntable.Stepper.Microstepping <= 0 {
		c.Turntable.Stepper.Microstepping = 16
	}
	if c.Turntable.Enabled && c.Turntable.Follow != "" && !seen[c.Turntable.Follow] {
		return fmt.Errorf("turntable.follow: unknown spinner %q", c.Turntable.Follow)
	}

	if c.Camera.Type == "" {
		c.Camera.Type = CameraRemoteGPIO
	}
	if c.Camera.Type != CameraRemoteGPIO {
		return fmt.Errorf("camera.type %q is not supported", c.Camera.Type)
	}
	if c.Camera.FocusDelayMs <= 0 {
		c.Camera.FocusDelayMs = 500
	}
	if c.Camera.ShutterDelayMs <= 0 {
		c.Camera.ShutterDelayMs = 200
	}
	if c.Camera.SettleDelayMs <= 0 {
		c.Camera.SettleDelayMs = 300
	}
	if c.Camera.PostShotDelayMs <= 0 {
		c.Camera.PostShotDelayMs = 300
	}

	if c.Defaults.MoveSpeedMs <= 0 {
		c.Defaults.MoveSpeedMs = 2
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// MoveSpeed returns the duration of one STEP pulse.
func (c *Config) MoveSpeed() time.Duration {
	return time.Duration(c.Defaults.MoveSpeedMs) * time.Millisecond
}

// InstanceTTL returns how long a widget may stay idle.
func (c *Config) InstanceTTL() time.Duration {
	return time.Duration(c.Server.InstanceTTLSec) * time.Second
}

// SweepInterval returns the period of the idle sweep.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Server.SweepIntervalSec) * time.Second
}

// FocusDelay returns the autofocus delay duration.
func (c *Config) FocusDelay() time.Duration {
	return time.Duration(c.Camera.FocusDelayMs) * time.Millisecond
}

// ShutterDelay returns the shutter hold duration.
func (c *Config) ShutterDelay() time.Duration {
	return time.Duration(c.Camera.ShutterDelayMs) * time.Millisecond
}

// SettleDelay returns the wait between a move and the shot.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Camera.SettleDelayMs) * time.Millisecond
}

// PostShotDelay returns the delay after shot before movement.
func (c *Config) PostShotDelay() time.Duration {
	return time.Duration(c.Camera.PostShotDelayMs) * time.Millisecond
}
