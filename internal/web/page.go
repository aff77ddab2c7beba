package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cjeanneret/SpinGo/internal/markup"
	"github.com/cjeanneret/SpinGo/internal/registry"
	"github.com/cjeanneret/SpinGo/internal/spin"
)

// spinnersSelector is the page element receiving one marker per catalog entry.
const spinnersSelector = "#spinners"

// ServeIndex serves the main HTML page (root path only). Every catalog
// entry is added as a marker element, then the page is auto-initialised so
// each marker becomes a decorated widget showing its start frame.
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	doc, err := markup.Parse(bytes.NewReader(data))
	if err != nil {
		http.Error(w, "invalid page", http.StatusInternalServerError)
		return
	}
	if err := h.addMarkers(r.Context(), doc); err != nil {
		log.Printf("page: %v", err)
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	if h.Registry != nil {
		if _, err := h.Registry.AutoInit(doc); err != nil {
			log.Printf("page: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := markup.Render(&buf, doc); err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *Handlers) addMarkers(ctx context.Context, doc *html.Node) error {
	if h.Catalog == nil {
		return nil
	}
	list, err := markup.Resolve(doc, spinnersSelector)
	if errors.Is(err, markup.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range h.Catalog.Entries() {
		opts, err := json.Marshal(spin.Options{
			Images:    entry.Images(),
			CurrImage: h.startFrame(ctx, entry),
		})
		if err != nil {
			return fmt.Errorf("marker %s: %w", entry.ID, err)
		}

		caption := &html.Node{Type: html.ElementNode, Data: "figcaption", DataAtom: atom.Figcaption}
		caption.AppendChild(&html.Node{Type: html.TextNode, Data: entry.Title})
		marker := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
		markup.SetAttr(marker, "id", "spin-"+entry.ID)
		markup.SetAttr(marker, registry.SpinnerAttr, entry.ID)
		markup.SetAttr(marker, spin.MarkerAttr, string(opts))

		figure := &html.Node{Type: html.ElementNode, Data: "figure", DataAtom: atom.Figure}
		markup.SetAttr(figure, "class", "spin-item")
		figure.AppendChild(marker)
		figure.AppendChild(caption)
		list.AppendChild(figure)
	}
	return nil
}
