package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cjeanneret/SpinGo/internal/config"
	"github.com/cjeanneret/SpinGo/internal/hw/gpio"
	"github.com/cjeanneret/SpinGo/internal/hw/stepper"
	"github.com/cjeanneret/SpinGo/internal/store"
	"github.com/cjeanneret/SpinGo/internal/turntable"
	"github.com/cjeanneret/SpinGo/internal/web"
)

// ---------- webPortFlag ----------

func TestWebPortFlag(t *testing.T) {
	cases := []struct {
		name  string
		args  []string
		want  int
		isErr bool
	}{
		{"unset", nil, 0, false},
		{"empty_uses_default", []string{""}, 9090, false},
		{"explicit", []string{"8980"}, 8980, false},
		{"zero", []string{"0"}, 0, true},
		{"too_large", []string{"70000"}, 0, true},
		{"not_a_number", []string{"http"}, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &webPortFlag{defaultPort: 9090}
			var err error
			for _, a := range tc.args {
				err = f.Set(a)
			}
			if (err != nil) != tc.isErr {
				t.Fatalf("Set err = %v, want error=%v", err, tc.isErr)
			}
			if !tc.isErr && f.port() != tc.want {
				t.Errorf("port = %d, want %d", f.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	f := &webPortFlag{defaultPort: 8080}
	if f.String() != "0" {
		t.Errorf("unset String = %q", f.String())
	}
	_ = f.Set("8181")
	if f.String() != "8181" {
		t.Errorf("String = %q, want 8181", f.String())
	}
}

// ---------- applyFlags ----------

func TestApplyFlags(t *testing.T) {
	cfg := &config.Config{}
	cfg.Defaults.DebugLevel = 1

	if err := applyFlags(cfg, -1, 0); err != nil || cfg.Defaults.DebugLevel != 1 {
		t.Errorf("negative debug should keep config: level=%d err=%v", cfg.Defaults.DebugLevel, err)
	}
	if err := applyFlags(cfg, 3, 24); err != nil || cfg.Defaults.DebugLevel != 3 {
		t.Errorf("debug override: level=%d err=%v", cfg.Defaults.DebugLevel, err)
	}
	for _, bad := range [][2]int{{5, 0}, {0, -1}, {0, web.MaxCaptureFrames + 1}} {
		if err := applyFlags(cfg, bad[0], bad[1]); err == nil {
			t.Errorf("applyFlags(%d, %d) should fail", bad[0], bad[1])
		}
	}
}

// ---------- Wiring ----------

func TestCatalogSources(t *testing.T) {
	cfg := &config.Config{}
	cfg.Catalog.Spinners = []config.SpinnerConfig{
		{ID: "shoe", Title: "Shoe", Dir: "shoe", StartFrame: 4},
		{ID: "mug", Title: "mug", Dir: "/srv/mug"},
	}
	got := catalogSources(cfg)
	if len(got) != 2 || got[0].ID != "shoe" || got[0].StartFrame != 4 || got[1].Dir != "/srv/mug" {
		t.Errorf("sources = %+v", got)
	}
}

func TestRenderers_Build(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	table := turntable.NewFollower(turntable.New(stepper.New(gpio.NewMockDriver(), stepper.Config{StepPin: 1, DirPin: 2, StepsPerRev: 200, Microstepping: 1})))
	r := &renderers{broadcaster: web.NewStatusBroadcaster(), store: st, follow: "shoe", table: table}

	if got := r.build("shoe", 8); len(got) != 3 {
		t.Errorf("followed spinner renderers = %d, want 3", len(got))
	}
	if got := r.build("mug", 8); len(got) != 2 {
		t.Errorf("catalog spinner renderers = %d, want 2", len(got))
	}
	if got := r.build("", 8); len(got) != 1 {
		t.Errorf("anonymous widget renderers = %d, want 1", len(got))
	}

	// Widgets of one spinner share their saved position.
	a, b := r.saver("shoe", 8), r.saver("shoe", 8)
	if a != b {
		t.Error("saver should be shared per spinner")
	}
	if err := a.Render(90); err != nil {
		t.Fatal(err)
	}
	r.flush()
	p, err := st.Load(context.Background(), "shoe")
	if err != nil {
		t.Fatalf("Load after flush: %v", err)
	}
	if p.Frame != 3 {
		t.Errorf("saved frame = %d, want 3", p.Frame)
	}
}

func TestRenderers_NoStore(t *testing.T) {
	r := &renderers{}
	if got := r.build("shoe", 4); len(got) != 0 {
		t.Errorf("renderers = %d, want 0", len(got))
	}
	r.flush()
}

func TestNewCameraFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Camera.Type = config.CameraRemoteGPIO
	if _, err := newCameraFromConfig(gpio.NewMockDriver(), cfg); err != nil {
		t.Errorf("remote camera: %v", err)
	}
	cfg.Camera.Type = "usb_ptp"
	if _, err := newCameraFromConfig(gpio.NewMockDriver(), cfg); err == nil {
		t.Error("unknown camera type should fail")
	}
}
