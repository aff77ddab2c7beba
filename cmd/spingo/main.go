package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/cjeanneret/SpinGo/internal/capture"
	"github.com/cjeanneret/SpinGo/internal/config"
	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/frames"
	"github.com/cjeanneret/SpinGo/internal/hw/camera"
	"github.com/cjeanneret/SpinGo/internal/hw/gpio"
	"github.com/cjeanneret/SpinGo/internal/hw/stepper"
	"github.com/cjeanneret/SpinGo/internal/journal"
	"github.com/cjeanneret/SpinGo/internal/registry"
	"github.com/cjeanneret/SpinGo/internal/spin"
	"github.com/cjeanneret/SpinGo/internal/spin/render"
	"github.com/cjeanneret/SpinGo/internal/store"
	"github.com/cjeanneret/SpinGo/internal/turntable"
	"github.com/cjeanneret/SpinGo/internal/web"
)

// defaultCaptureFrames pre-fills the capture form.
const defaultCaptureFrames = 36

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for the configured port, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	captureFrames := flag.Int("capture", 0, "shoot a spin set of N frames on the turntable and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := applyFlags(cfg, *debugLevel, *captureFrames); err != nil {
		log.Fatalf("invalid flag: %v", err)
	}
	webPort.defaultPort = cfg.Server.Port

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if *captureFrames == 0 && webPort.port() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Hardware
	var (
		table *turntable.Turntable
		cam   camera.Camera
	)
	if cfg.Turntable.Enabled {
		debug.Step(1, "Initializing turntable")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
		motor := stepper.New(gpioDriver, stepper.Config{
			StepPin:       cfg.Turntable.Stepper.StepPin,
			DirPin:        cfg.Turntable.Stepper.DirPin,
			EnablePin:     cfg.Turntable.Stepper.EnablePin,
			StepsPerRev:   cfg.Turntable.Stepper.StepsPerRev,
			Microstepping: cfg.Turntable.Stepper.Microstepping,
			StepDelay:     cfg.MoveSpeed() / 2,
		})
		debug.PrintStruct("Stepper config", cfg.Turntable.Stepper)
		table = turntable.New(motor)

		cam, err = newCameraFromConfig(gpioDriver, cfg)
		if err != nil {
			log.Fatalf("init camera failed: %v", err)
		}
		debug.Value("Camera type", cfg.Camera.Type)
	}

	runCapture := func(ctx context.Context, n int, onShot func(frame, total int)) error {
		if table == nil {
			return fmt.Errorf("turntable is disabled in %s", *cfgPath)
		}
		seq := capture.NewSequence(table, cam, capture.Params{
			Settle:   cfg.SettleDelay(),
			PostShot: cfg.PostShotDelay(),
			OnShot:   onShot,
		})
		return seq.RunSpinCapture(ctx, n)
	}

	if *captureFrames > 0 {
		if err := runCapture(ctx, *captureFrames, nil); err != nil {
			log.Fatalf("capture failed: %v", err)
		}
		debug.Section("Capture Complete")
		return
	}

	if err := serve(ctx, cfg, webPort.port(), table, runCapture); err != nil {
		log.Fatalf("web server: %v", err)
	}
}

// serve loads the catalog, opens the store and the journal, and runs the
// web server until ctx is done.
func serve(ctx context.Context, cfg *config.Config, port int, table *turntable.Turntable,
	runCapture func(context.Context, int, func(int, int)) error) error {
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

	debug.Step(2, "Loading catalog")
	catalog, err := frames.LoadCatalog(cfg.Catalog.Root, catalogSources(cfg), cfg.Catalog.MaxWidth)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	debug.Value("Spinners", len(catalog.Entries()))

	var recorders spin.Recorders
	factory := &renderers{broadcaster: broadcaster, follow: cfg.Turntable.Follow}

	var positions web.PositionStore
	if cfg.Store.Path != "" {
		debug.Step(3, "Opening store")
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		factory.store = st
		recorders = append(recorders, st.ViewRecorder())
		if cfg.Store.RestoreAngle {
			positions = st
		}
	}
	if cfg.Journal.Dir != "" {
		debug.Value("Journal", cfg.Journal.Dir)
		jw := journal.NewWriter(cfg.Journal.Dir)
		defer func() {
			if err := jw.Close(); err != nil {
				log.Printf("closing journal failed: %v", err)
			}
		}()
		recorders = append(recorders, jw)
	}
	if table != nil && cfg.Turntable.Follow != "" {
		factory.table = turntable.NewFollower(table)
		go factory.table.Run(ctx)
	}

	regCfg := registry.Config{
		Sensitivity: cfg.Gesture.Sensitivity,
		Renderers:   factory.build,
	}
	if len(recorders) > 0 {
		regCfg.Recorder = recorders
	}
	reg := registry.New(regCfg)
	defer func() {
		reg.Close()
		factory.flush()
	}()

	deps := web.Deps{
		Broadcaster:  broadcaster,
		Registry:     reg,
		Catalog:      catalog,
		Positions:    positions,
		FormDefaults: web.FormConfig{CaptureEnabled: table != nil, CaptureFrames: defaultCaptureFrames},
	}
	if table != nil {
		deps.RunCapture = func(ctx context.Context, n int) error {
			return runCapture(ctx, n, broadcaster.BroadcastCapture)
		}
	}

	srv := web.NewServer(fmt.Sprintf(":%d", port), deps, web.SweepConfig{
		Idle:     cfg.InstanceTTL(),
		Interval: cfg.SweepInterval(),
	})
	return srv.Run(ctx)
}

// renderers builds the extra renderers of every widget: frame
// announcements, one saved position per catalog spinner and the turntable
// for the followed spinner.
type renderers struct {
	broadcaster *web.StatusBroadcaster
	store       *store.Store
	follow      string
	table       *turntable.Follower

	mu    sync.Mutex
	saved map[string]*store.Follower
}

func (r *renderers) build(spinnerID string, total int) []render.Renderer {
	var out []render.Renderer
	if r.broadcaster != nil {
		out = append(out, r.broadcaster.FrameRenderer(spinnerID, total))
	}
	if r.store != nil && spinnerID != "" {
		out = append(out, r.saver(spinnerID, total))
	}
	if r.table != nil && spinnerID == r.follow {
		out = append(out, r.table)
	}
	return out
}

func (r *renderers) saver(spinnerID string, total int) *store.Follower {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		r.saved = make(map[string]*store.Follower)
	}
	f, ok := r.saved[spinnerID]
	if !ok {
		f = r.store.Follower(spinnerID, total)
		r.saved[spinnerID] = f
	}
	return f
}

// flush writes every pending position.
func (r *renderers) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.saved {
		f.Flush()
	}
}

// applyFlags mutates cfg with the command line overrides. A negative debug
// level keeps the configured one.
func applyFlags(cfg *config.Config, debugLevel, captureFrames int) error {
	if debugLevel > 4 {
		return fmt.Errorf("debug must be between 0 and 4, got %d", debugLevel)
	}
	if debugLevel >= 0 {
		cfg.Defaults.DebugLevel = debugLevel
	}
	if captureFrames < 0 || captureFrames > web.MaxCaptureFrames {
		return fmt.Errorf("capture must be between 1 and %d, got %d", web.MaxCaptureFrames, captureFrames)
	}
	return nil
}

func catalogSources(cfg *config.Config) []frames.Source {
	out := make([]frames.Source, len(cfg.Catalog.Spinners))
	for i, s := range cfg.Catalog.Spinners {
		out[i] = frames.Source{ID: s.ID, Title: s.Title, Dir: s.Dir, StartFrame: s.StartFrame}
	}
	return out
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= → configured port, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	set         bool
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w == nil || w.port() == 0 {
		return "0"
	}
	return strconv.Itoa(w.port())
}

func (w *webPortFlag) Set(s string) error {
	w.set = true
	if s == "" {
		w.val = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int {
	if !w.set {
		return 0
	}
	if w.val == 0 {
		return w.defaultPort
	}
	return w.val
}

// newCameraFromConfig selects a camera implementation based on configuration.
func newCameraFromConfig(g gpio.Driver, cfg *config.Config) (camera.Camera, error) {
	switch cfg.Camera.Type {
	case config.CameraRemoteGPIO:
		return camera.NewRemote(
			g,
			cfg.Camera.FocusPin,
			cfg.Camera.ShutterPin,
			cfg.FocusDelay(),
			cfg.ShutterDelay(),
		), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}
