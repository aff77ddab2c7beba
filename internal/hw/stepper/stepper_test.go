package stepper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/SpinGo/internal/hw/gpio"
)

func testConfig() Config {
	return Config{
		StepPin:       17,
		DirPin:        27,
		EnablePin:     5,
		StepsPerRev:   200,
		Microstepping: 16,
		StepDelay:     time.Microsecond,
	}
}

func TestNew_ConfiguresPins(t *testing.T) {
	drv := gpio.NewMockDriver()
	New(drv, testConfig())

	for _, pin := range []int{17, 27, 5} {
		if mode, ok := drv.Mode(pin); !ok || mode != gpio.Output {
			t.Errorf("pin %d mode = %v, %v; want output", pin, mode, ok)
		}
	}
	if lvl, _ := drv.ReadPin(5); lvl != gpio.Low {
		t.Error("driver should be enabled (ENABLE low) after New")
	}
}

func TestMove(t *testing.T) {
	cases := []struct {
		name    string
		steps   int
		dir     gpio.Level
		pulses  int
		wantPos int
	}{
		{"forward", 10, gpio.High, 10, 10},
		{"backward", -7, gpio.Low, 7, -7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			drv := gpio.NewMockDriver()
			s := New(drv, testConfig())
			drv.Reset()

			if err := s.Move(context.Background(), tc.steps); err != nil {
				t.Fatalf("Move: %v", err)
			}
			dirWrites := drv.Writes(27)
			if len(dirWrites) != 1 || dirWrites[0].Level != tc.dir {
				t.Errorf("DIR writes = %+v, want one %v", dirWrites, tc.dir)
			}
			if n := drv.Pulses(17); n != tc.pulses {
				t.Errorf("pulses = %d, want %d", n, tc.pulses)
			}
			if lvl, _ := drv.ReadPin(17); lvl != gpio.Low {
				t.Error("STEP must end low")
			}
			if s.Position() != tc.wantPos {
				t.Errorf("position = %d, want %d", s.Position(), tc.wantPos)
			}
		})
	}
}

func TestMove_Zero(t *testing.T) {
	drv := gpio.NewMockDriver()
	s := New(drv, testConfig())
	drv.Reset()
	if err := s.Move(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if len(drv.Writes()) != 0 {
		t.Errorf("zero move wrote %+v", drv.Writes())
	}
}

func TestMove_Cancelled(t *testing.T) {
	drv := gpio.NewMockDriver()
	s := New(drv, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Move(ctx, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s.Position() != 0 || drv.Pulses(17) != 0 {
		t.Errorf("cancelled move pulsed: pos %d", s.Position())
	}
}

func TestPositionAccumulatesAndZero(t *testing.T) {
	s := New(gpio.NewMockDriver(), testConfig())
	ctx := context.Background()
	_ = s.Move(ctx, 12)
	_ = s.Move(ctx, -5)
	if s.Position() != 7 {
		t.Errorf("position = %d, want 7", s.Position())
	}
	s.Zero()
	if s.Position() != 0 {
		t.Errorf("position after Zero = %d", s.Position())
	}
}

func TestMicrostepsPerRev(t *testing.T) {
	s := New(gpio.NewMockDriver(), testConfig())
	if got := s.MicrostepsPerRev(); got != 3200 {
		t.Errorf("MicrostepsPerRev = %d, want 3200", got)
	}
}

func TestEnableDisable(t *testing.T) {
	drv := gpio.NewMockDriver()
	s := New(drv, testConfig())

	if err := s.Disable(); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := drv.ReadPin(5); lvl != gpio.High {
		t.Error("Disable should set ENABLE high")
	}
	if err := s.Enable(); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := drv.ReadPin(5); lvl != gpio.Low {
		t.Error("Enable should set ENABLE low")
	}
}

func TestEnableDisable_NoPin(t *testing.T) {
	cfg := testConfig()
	cfg.EnablePin = 0
	drv := gpio.NewMockDriver()
	s := New(drv, cfg)
	drv.Reset()
	_ = s.Enable()
	_ = s.Disable()
	if len(drv.Writes()) != 0 {
		t.Errorf("unwired ENABLE was written: %+v", drv.Writes())
	}
}
