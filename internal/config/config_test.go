package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"default.yaml", "con fig.yaml", "café.yaml"} {
		if err := ValidateConfigPath(filepath.Join(cfgDir, name)); err != nil {
			t.Errorf("%q: unexpected error: %v", name, err)
		}
	}
}

func TestValidateConfigPath_Rejected(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"traversal", "../../etc/passwd"},
		{"traversal_out_of_configs", "configs/../../../etc/shadow.yaml"},
		{"json", "configs/default.json"},
		{"yml", "configs/default.yml"},
		{"no_ext", "configs/default"},
		{"other_dir", "other/default.yaml"},
		{"bare_file", "default.yaml"},
		{"tmp", "/tmp/default.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateConfigPath(tc.path); err == nil {
				t.Errorf("expected error for %q, got nil", tc.path)
			}
		})
	}
}

// ---------- Load ----------

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
server:
  port: 9090
  instance_ttl_sec: 120
  sweep_interval_sec: 10
gesture:
  sensitivity: 4
catalog:
  root: "../frames"
  max_width: 800
  spinners:
    - id: shoe
      title: "Running shoe"
      dir: shoe
      start_frame: 3
    - id: mug
      dir: /srv/mug
store:
  path: "/var/lib/spingo/state.sqlite"
  restore_angle: true
journal:
  dir: "/var/lib/spingo/journal"
turntable:
  enabled: true
  follow: shoe
  stepper:
    step_pin: 17
    dir_pin: 27
    enable_pin: 5
    steps_per_rev: 400
    microstepping: 8
camera:
  type: remote_gpio
  focus_pin: 24
  shutter_pin: 25
defaults:
  move_speed_ms: 3
  debug_level: 2
  mock_gpio: true
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.InstanceTTL() != 2*time.Minute || cfg.SweepInterval() != 10*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Gesture.Sensitivity != 4 {
		t.Errorf("sensitivity = %v", cfg.Gesture.Sensitivity)
	}
	wantRoot := filepath.Join(filepath.Dir(path), "../frames")
	if cfg.Catalog.Root != wantRoot {
		t.Errorf("catalog.root = %q, want %q", cfg.Catalog.Root, wantRoot)
	}
	if len(cfg.Catalog.Spinners) != 2 {
		t.Fatalf("spinners = %+v", cfg.Catalog.Spinners)
	}
	if s := cfg.Catalog.Spinners[0]; s.ID != "shoe" || s.Title != "Running shoe" || s.StartFrame != 3 {
		t.Errorf("spinner 0 = %+v", s)
	}
	if s := cfg.Catalog.Spinners[1]; s.Title != "mug" {
		t.Errorf("title should default to id, got %q", s.Title)
	}
	if !cfg.Store.RestoreAngle || cfg.Journal.Dir == "" {
		t.Errorf("store/journal = %+v / %+v", cfg.Store, cfg.Journal)
	}
	if st := cfg.Turntable.Stepper; st.StepsPerRev != 400 || st.Microstepping != 8 || st.EnablePin != 5 {
		t.Errorf("stepper = %+v", st)
	}
	if cfg.Camera.FocusPin != 24 || cfg.Camera.ShutterPin != 25 {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if cfg.MoveSpeed() != 3*time.Millisecond || cfg.Defaults.DebugLevel != 2 || !cfg.Defaults.MockGPIO {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name      string
		got, want any
	}{
		{"port", cfg.Server.Port, 8080},
		{"ttl", cfg.InstanceTTL(), 10 * time.Minute},
		{"sweep", cfg.SweepInterval(), time.Minute},
		{"sensitivity", cfg.Gesture.Sensitivity, 1.0},
		{"steps_per_rev", cfg.Turntable.Stepper.StepsPerRev, 200},
		{"microstepping", cfg.Turntable.Stepper.Microstepping, 16},
		{"camera.type", cfg.Camera.Type, CameraRemoteGPIO},
		{"focus", cfg.FocusDelay(), 500 * time.Millisecond},
		{"shutter", cfg.ShutterDelay(), 200 * time.Millisecond},
		{"settle", cfg.SettleDelay(), 300 * time.Millisecond},
		{"post_shot", cfg.PostShotDelay(), 300 * time.Millisecond},
		{"move_speed", cfg.MoveSpeed(), 2 * time.Millisecond},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s default = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err != nil {
		t.Errorf("empty config should load with defaults, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"bad_port", "server:\n  port: 70000\n", "server.port"},
		{"negative_sensitivity", "gesture:\n  sensitivity: -1\n", "gesture.sensitivity"},
		{"negative_max_width", "catalog:\n  max_width: -5\n", "max_width"},
		{"spinner_without_id", "catalog:\n  spinners:\n    - dir: x\n", ".id is required"},
		{"spinner_without_dir", "catalog:\n  spinners:\n    - id: x\n", ".dir is required"},
		{"duplicate_spinner", "catalog:\n  spinners:\n    - {id: x, dir: a}\n    - {id: x, dir: b}\n", "duplicate"},
		{"negative_start", "catalog:\n  spinners:\n    - {id: x, dir: a, start_frame: -2}\n", "start_frame"},
		{"unknown_follow", "turntable:\n  enabled: true\n  follow: ghost\n", "turntable.follow"},
		{"unknown_camera", "camera:\n  type: usb_ptp\n", "camera.type"},
		{"bad_debug_level", "defaults:\n  debug_level: 9\n", "debug_level"},
		{"invalid_yaml", "{{{{invalid yaml!!!!", "unmarshal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestLoad_FollowIgnoredWhenDisabled(t *testing.T) {
	if _, err := Load(writeConfig(t, "turntable:\n  follow: ghost\n")); err != nil {
		t.Errorf("disabled turntable should not validate follow: %v", err)
	}
}

func TestLoad_RelativePaths(t *testing.T) {
	path := writeConfig(t, "store:\n  path: ../var/state.sqlite\njournal:\n  dir: journal\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Dir(path)
	if want := filepath.Join(base, "../var/state.sqlite"); cfg.Store.Path != want {
		t.Errorf("store.path = %q, want %q", cfg.Store.Path, want)
	}
	if want := filepath.Join(base, "journal"); cfg.Journal.Dir != want {
		t.Errorf("journal.dir = %q, want %q", cfg.Journal.Dir, want)
	}
	if cfg.Catalog.Root != base {
		t.Errorf("empty catalog.root = %q, want the config dir", cfg.Catalog.Root)
	}
}

func TestLoad_DisabledPathsStayEmpty(t *testing.T) {
	cfg, err := Load(writeConfig(t, "store:\n  path: \":memory:\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Path != ":memory:" || cfg.Journal.Dir != "" {
		t.Errorf("store.path = %q, journal.dir = %q", cfg.Store.Path, cfg.Journal.Dir)
	}
}

func TestLoad_AbsoluteRootKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "catalog:\n  root: /srv/frames\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Catalog.Root != "/srv/frames" {
		t.Errorf("root = %q", cfg.Catalog.Root)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	data := strings.Repeat("#", MaxConfigFileBytes+1)
	if _, err := Load(writeConfig(t, data)); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
unknown_section:
  foo: bar
`
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "configs", "nonexistent.yaml")); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}
