package frames

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/cjeanneret/SpinGo/internal/spin"
)

// Entry is one spinner of the catalog.
type Entry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	StartFrame int    `json:"start_frame"`
	Frames     int    `json:"frames"`
	set        *Set
}

// Set returns the entry's frame files.
func (e *Entry) Set() *Set { return e.set }

// Images returns the frame references served under /frames/{id}/{n}.
func (e *Entry) Images() []spin.ImageRef {
	refs := make([]spin.ImageRef, e.Frames)
	for i := range refs {
		refs[i] = spin.ImageRef{
			Src:   fmt.Sprintf("/frames/%s/%d", url.PathEscape(e.ID), i+1),
			Title: fmt.Sprintf("%s %d/%d", e.Title, i+1, e.Frames),
		}
	}
	return refs
}

// Source names a catalog directory.
type Source struct {
	ID         string
	Title      string
	Dir        string
	StartFrame int
}

// Catalog keeps the spinners in configuration order.
type Catalog struct {
	entries []*Entry
	byID    map[string]*Entry
}

// LoadCatalog loads every source. Relative directories are resolved
// against root.
func LoadCatalog(root string, sources []Source, maxWidth int) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Entry)}
	for _, src := range sources {
		if _, dup := c.byID[src.ID]; dup {
			return nil, fmt.Errorf("frames: duplicate spinner id %q", src.ID)
		}
		dir := src.Dir
		if !filepath.IsAbs(dir) && root != "" {
			dir = filepath.Join(root, dir)
		}
		set, err := Load(dir, maxWidth)
		if err != nil {
			return nil, fmt.Errorf("spinner %q: %w", src.ID, err)
		}
		start := src.StartFrame
		if start == 0 {
			start = 1
		}
		e := &Entry{ID: src.ID, Title: src.Title, StartFrame: start, Frames: set.Len(), set: set}
		c.entries = append(c.entries, e)
		c.byID[e.ID] = e
	}
	return c, nil
}

// Entries returns the spinners in configuration order.
func (c *Catalog) Entries() []*Entry {
	return append([]*Entry(nil), c.entries...)
}

// Get returns the spinner with id.
func (c *Catalog) Get(id string) (*Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}
