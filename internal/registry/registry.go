// Package registry owns the mounted widget instances.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/markup"
	"github.com/cjeanneret/SpinGo/internal/spin"
	"github.com/cjeanneret/SpinGo/internal/spin/render"
	"github.com/cjeanneret/SpinGo/internal/spin/rotation"
)

const (
	// InstanceAttr is set on a mounted element to the id of its instance.
	InstanceAttr = "data-spin-instance"
	// SpinnerAttr names the catalog entry an element was rendered from.
	SpinnerAttr = "data-spin-id"
)

// ErrNotFound is returned for an unknown instance id.
var ErrNotFound = errors.New("registry: instance not found")

// RendererFactory returns extra renderers for a new instance, e.g. a store
// follower. It may return nil.
type RendererFactory func(spinnerID string, total int) []render.Renderer

// Config holds what every instance is built with.
type Config struct {
	Sensitivity float64
	Recorder    spin.Recorder
	Renderers   RendererFactory
	Now         func() time.Time
}

// Instance is a mounted widget. Widget is nil for headless instances.
type Instance struct {
	*spin.Spinner
	Widget *markup.Widget
}

// Registry is safe for concurrent use.
type Registry struct {
	cfg Config

	// mountMu serialises Mount so that an element is checked and claimed
	// in one step, and documents are not edited concurrently.
	mountMu sync.Mutex

	mu        sync.Mutex
	instances map[string]*Instance
	byElement map[*html.Node]*Instance
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:       cfg,
		instances: make(map[string]*Instance),
		byElement: make(map[*html.Node]*Instance),
	}
}

// Mount builds a widget on target, an element or a CSS selector within doc.
// A direct options argument wins over the element's marker attribute.
// Mounting an element twice returns the existing instance.
func (r *Registry) Mount(doc *html.Node, target any, direct *spin.Options) (*Instance, error) {
	r.mountMu.Lock()
	defer r.mountMu.Unlock()

	el, err := markup.Resolve(doc, target)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if inst, ok := r.byElement[el]; ok {
		r.mu.Unlock()
		return inst, nil
	}
	r.mu.Unlock()

	attr, _ := markup.Attr(el, spin.MarkerAttr)
	opts, err := spin.ResolveOptions(direct, attr)
	if err != nil {
		return nil, err
	}

	images := opts.Images
	if len(images) > 0 {
		markup.CreateImages(el, toMarkup(images))
	} else {
		images = fromMarkup(markup.DiscoverImages(el))
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %v", spin.ErrConfig, rotation.ErrNoImages)
	}

	widget, err := markup.Build(el)
	if err != nil {
		return nil, err
	}

	spinnerID, ok := markup.Attr(el, SpinnerAttr)
	if !ok {
		spinnerID, _ = markup.Attr(el, "id")
	}
	dom := &domRenderer{widget: widget, vis: render.NewVisibility(len(images))}
	inst, err := r.newInstance(spinnerID, images, opts.StartFrame(), widget, dom)
	if err != nil {
		return nil, err
	}
	markup.SetAttr(el, InstanceAttr, inst.ID())

	r.mu.Lock()
	r.byElement[el] = inst
	r.mu.Unlock()
	return inst, nil
}

// AutoInit mounts every marker element in doc that has no instance yet.
// Elements that fail are skipped and their errors joined.
func (r *Registry) AutoInit(doc *html.Node) ([]*Instance, error) {
	var (
		mounted []*Instance
		errs    []error
	)
	for _, el := range markup.Scan(doc, spin.MarkerAttr) {
		if _, done := markup.Attr(el, InstanceAttr); done {
			continue
		}
		inst, err := r.Mount(doc, el, nil)
		if err != nil {
			id, _ := markup.Attr(el, "id")
			errs = append(errs, fmt.Errorf("mount %q: %w", id, err))
			continue
		}
		mounted = append(mounted, inst)
	}
	debug.Verbose("Auto-init mounted %d widget(s)", len(mounted))
	return mounted, errors.Join(errs...)
}

// Create builds a headless instance over images.
func (r *Registry) Create(spinnerID string, images []spin.ImageRef, startFrame int) (*Instance, error) {
	return r.newInstance(spinnerID, images, startFrame, nil, nil)
}

func (r *Registry) newInstance(spinnerID string, images []spin.ImageRef, startFrame int, widget *markup.Widget, dom render.Renderer) (*Instance, error) {
	opts := []spin.Option{
		spin.WithID(uuid.NewString()),
		spin.WithSpinnerID(spinnerID),
		spin.WithClock(r.cfg.Now),
		spin.WithRenderer(dom),
	}
	if r.cfg.Sensitivity > 0 {
		opts = append(opts, spin.WithSensitivity(r.cfg.Sensitivity))
	}
	if r.cfg.Recorder != nil {
		opts = append(opts, spin.WithRecorder(r.cfg.Recorder))
	}
	if r.cfg.Renderers != nil {
		for _, extra := range r.cfg.Renderers(spinnerID, len(images)) {
			opts = append(opts, spin.WithRenderer(extra))
		}
	}

	s, err := spin.New(images, startFrame, opts...)
	if err != nil {
		return nil, err
	}
	inst := &Instance{Spinner: s, Widget: widget}

	r.mu.Lock()
	r.instances[s.ID()] = inst
	r.mu.Unlock()
	return inst, nil
}

// Get returns the instance with id.
func (r *Registry) Get(id string) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inst, nil
}

// List returns every instance ordered by id.
func (r *Registry) List() []*Instance {
	r.mu.Lock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Dispose detaches the instance and forgets it.
func (r *Registry) Dispose(id string) error {
	r.mu.Lock()
	inst, ok := r.instances[id]
	if ok {
		r.forget(inst)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	inst.Dispose()
	return nil
}

// Sweep disposes instances without input for longer than idle and returns
// how many were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.cfg.Now().Add(-idle)

	r.mu.Lock()
	var stale []*Instance
	for _, inst := range r.instances {
		if inst.IdleSince().Before(cutoff) {
			stale = append(stale, inst)
			r.forget(inst)
		}
	}
	r.mu.Unlock()

	for _, inst := range stale {
		inst.Dispose()
	}
	if len(stale) > 0 {
		debug.Info("Swept %d idle widget(s)", len(stale))
	}
	return len(stale)
}

// Close disposes every instance.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		all = append(all, inst)
		r.forget(inst)
	}
	r.mu.Unlock()
	for _, inst := range all {
		inst.Dispose()
	}
}

// forget must be called with r.mu held.
func (r *Registry) forget(inst *Instance) {
	delete(r.instances, inst.ID())
	if inst.Widget != nil {
		delete(r.byElement, inst.Widget.Container)
	}
}

// domRenderer mirrors the visible frame onto the widget's images.
type domRenderer struct {
	widget *markup.Widget
	vis    *render.Visibility
}

func (d *domRenderer) Render(angle float64) error {
	if err := d.vis.Render(angle); err != nil {
		return err
	}
	d.widget.ApplyVisibility(d.vis.Shown())
	return nil
}

func toMarkup(refs []spin.ImageRef) []markup.Image {
	out := make([]markup.Image, len(refs))
	for i, r := range refs {
		out[i] = markup.Image{Src: r.Src, Title: r.Title}
	}
	return out
}

func fromMarkup(imgs []markup.Image) []spin.ImageRef {
	out := make([]spin.ImageRef, len(imgs))
	for i, img := range imgs {
		out[i] = spin.ImageRef{Src: img.Src, Title: img.Title}
	}
	return out
}
