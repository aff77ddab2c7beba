package camera

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/cjeanneret/SpinGo/internal/hw/gpio"
)

const (
	focusPin   = 24
	shutterPin = 25
)

func TestNewRemote_LinesReleased(t *testing.T) {
	drv := gpio.NewMockDriver()
	NewRemote(drv, focusPin, shutterPin, 0, 0)

	for _, pin := range []int{focusPin, shutterPin} {
		if mode, _ := drv.Mode(pin); mode != gpio.Output {
			t.Errorf("pin %d not output", pin)
		}
		if lvl, _ := drv.ReadPin(pin); lvl != gpio.High {
			t.Errorf("pin %d should start HIGH", pin)
		}
	}
}

func TestRemote_ShootSequence(t *testing.T) {
	drv := gpio.NewMockDriver()
	r := NewRemote(drv, focusPin, shutterPin, time.Millisecond, time.Millisecond)
	drv.Reset()

	if err := r.Shoot(context.Background()); err != nil {
		t.Fatalf("Shoot: %v", err)
	}
	want := []gpio.Write{
		{Pin: focusPin, Level: gpio.Low},
		{Pin: shutterPin, Level: gpio.Low},
		{Pin: shutterPin, Level: gpio.High},
		{Pin: focusPin, Level: gpio.High},
	}
	if got := drv.Writes(); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %+v, want %+v", got, want)
	}
}

func TestRemote_ShootCancelledReleases(t *testing.T) {
	drv := gpio.NewMockDriver()
	r := NewRemote(drv, focusPin, shutterPin, time.Hour, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := r.Shoot(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	for _, pin := range []int{focusPin, shutterPin} {
		if lvl, _ := drv.ReadPin(pin); lvl != gpio.High {
			t.Errorf("pin %d left active after cancel", pin)
		}
	}
	for _, w := range drv.Writes(shutterPin) {
		if w.Level == gpio.Low {
			t.Error("shutter fired although focus wait was cancelled")
		}
	}
}
