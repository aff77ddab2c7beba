// Package markup scans and decorates the HTML that hosts spin widgets.
package markup

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Class names of the produced structure, for collaborators to style.
const (
	ClassWrapper   = "spin-wrapper"
	ClassContainer = "spin-container"
	ClassOverlay   = "spin-overlay"
	ClassTrack     = "spin-track"
	ClassThumb     = "spin-thumb"
)

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = errors.New("markup: element not found")

var imgSelector = cascadia.MustCompile("img")

// Image is an image found in or written to a container.
type Image struct {
	Src   string
	Title string
}

// Widget is the element structure built around a container.
type Widget struct {
	Wrapper   *html.Node
	Container *html.Node
	Overlay   *html.Node
	Track     *html.Node
	Thumb     *html.Node
	Images    []*html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("markup: parse: %w", err)
	}
	return doc, nil
}

// Render writes doc as HTML.
func Render(w io.Writer, doc *html.Node) error {
	return html.Render(w, doc)
}

// Resolve returns the element for target, which is either an element node
// or a CSS selector evaluated against doc.
func Resolve(doc *html.Node, target any) (*html.Node, error) {
	switch t := target.(type) {
	case *html.Node:
		if t == nil || t.Type != html.ElementNode {
			return nil, fmt.Errorf("markup: target is not an element")
		}
		return t, nil
	case string:
		sel, err := cascadia.Compile(t)
		if err != nil {
			return nil, fmt.Errorf("markup: selector %q: %w", t, err)
		}
		n := sel.MatchFirst(doc)
		if n == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, t)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("markup: unsupported target %T", target)
	}
}

// Scan returns every element carrying attr, in document order.
func Scan(doc *html.Node, attr string) []*html.Node {
	sel, err := cascadia.Compile("[" + attr + "]")
	if err != nil {
		return nil
	}
	return sel.MatchAll(doc)
}

// Attr returns the value of key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets key on n, replacing any previous value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// DiscoverImages returns the images already inside container.
func DiscoverImages(container *html.Node) []Image {
	nodes := imgNodes(container)
	imgs := make([]Image, 0, len(nodes))
	for _, n := range nodes {
		src, _ := Attr(n, "src")
		alt, _ := Attr(n, "alt")
		imgs = append(imgs, Image{Src: src, Title: alt})
	}
	return imgs
}

// CreateImages removes the images inside container and appends one <img>
// per entry of imgs.
func CreateImages(container *html.Node, imgs []Image) {
	for _, n := range imgNodes(container) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	for _, img := range imgs {
		container.AppendChild(element(atom.Img, "",
			html.Attribute{Key: "src", Val: img.Src},
			html.Attribute{Key: "alt", Val: img.Title},
		))
	}
}

// Build decorates container with the overlay, wraps it, and appends the
// scrub track after it. The container must be attached to a parent.
func Build(container *html.Node) (*Widget, error) {
	if container == nil || container.Type != html.ElementNode {
		return nil, fmt.Errorf("markup: container is not an element")
	}
	if container.Parent == nil {
		return nil, fmt.Errorf("markup: container has no parent")
	}

	w := &Widget{Container: container}

	w.Overlay = element(atom.Div, ClassOverlay)
	addStyle(w.Overlay, "position:absolute;width:100%;height:100%;top:0;left:0;z-index:1;cursor:e-resize")
	container.AppendChild(w.Overlay)

	addClass(container, ClassContainer)
	addStyle(container, "position:relative;width:100%;height:auto;overflow:hidden")

	w.Images = imgNodes(container)
	for _, img := range w.Images {
		addStyle(img, "width:100%")
	}

	w.Wrapper = element(atom.Div, ClassWrapper)
	addStyle(w.Wrapper, "width:fit-content;margin:0 auto")
	parent := container.Parent
	parent.InsertBefore(w.Wrapper, container)
	parent.RemoveChild(container)
	w.Wrapper.AppendChild(container)

	w.Track = element(atom.Div, ClassTrack)
	addStyle(w.Track, "position:relative;width:100%;height:20px;background-color:#f1f1f1;margin:20px auto;border-radius:10px;cursor:pointer")
	w.Thumb = element(atom.Div, ClassThumb)
	addStyle(w.Thumb, "position:absolute;top:0;left:0;width:60px;height:20px;background-color:#4caf50;border-radius:20px;cursor:pointer")
	w.Track.AppendChild(w.Thumb)
	w.Wrapper.AppendChild(w.Track)

	return w, nil
}

// ApplyVisibility sets the display style of each image from shown.
func (w *Widget) ApplyVisibility(shown []bool) {
	for i, img := range w.Images {
		display := "none"
		if i < len(shown) && shown[i] {
			display = "block"
		}
		setStyleProp(img, "display", display)
	}
}

func imgNodes(container *html.Node) []*html.Node {
	var out []*html.Node
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, imgSelector.MatchAll(c)...)
	}
	return out
}

func element(a atom.Atom, class string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	if class != "" {
		SetAttr(n, "class", class)
	}
	return n
}

func addClass(n *html.Node, class string) {
	cur, _ := Attr(n, "class")
	for _, c := range strings.Fields(cur) {
		if c == class {
			return
		}
	}
	SetAttr(n, "class", strings.TrimSpace(cur+" "+class))
}

func addStyle(n *html.Node, decls string) {
	cur, _ := Attr(n, "style")
	cur = strings.TrimRight(strings.TrimSpace(cur), ";")
	if cur == "" {
		SetAttr(n, "style", decls)
		return
	}
	SetAttr(n, "style", cur+";"+decls)
}

// setStyleProp replaces prop in the style attribute, keeping other declarations.
func setStyleProp(n *html.Node, prop, val string) {
	cur, _ := Attr(n, "style")
	var kept []string
	for _, d := range strings.Split(cur, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name, _, _ := strings.Cut(d, ":")
		if strings.EqualFold(strings.TrimSpace(name), prop) {
			continue
		}
		kept = append(kept, d)
	}
	kept = append(kept, prop+":"+val)
	SetAttr(n, "style", strings.Join(kept, ";"))
}
