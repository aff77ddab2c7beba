package markup

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const page = `<!DOCTYPE html><html><body>
<div id="a" data-spin='{"currImage":"2"}'>
  <img src="1.jpg" alt="one"><img src="2.jpg" alt="two"><img src="3.jpg">
</div>
<p>text</p>
<div id="b" data-spin></div>
</body></html>`

func mustParse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func render(t *testing.T, n *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Render(&buf, n); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

// ---------- Scan / Resolve ----------

func TestScan(t *testing.T) {
	doc := mustParse(t, page)
	nodes := Scan(doc, "data-spin")
	if len(nodes) != 2 {
		t.Fatalf("Scan found %d elements, want 2", len(nodes))
	}
	if id, _ := Attr(nodes[0], "id"); id != "a" {
		t.Errorf("first element id = %q, want a", id)
	}
	if v, _ := Attr(nodes[0], "data-spin"); v != `{"currImage":"2"}` {
		t.Errorf("attribute = %q", v)
	}
	if v, ok := Attr(nodes[1], "data-spin"); !ok || v != "" {
		t.Errorf("empty attribute = %q, %v", v, ok)
	}
}

func TestResolve(t *testing.T) {
	doc := mustParse(t, page)

	n, err := Resolve(doc, "#b")
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := Attr(n, "id"); id != "b" {
		t.Errorf("id = %q, want b", id)
	}

	same, err := Resolve(doc, n)
	if err != nil || same != n {
		t.Errorf("Resolve(node) = %v, %v", same, err)
	}

	if _, err := Resolve(doc, "#missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing selector err = %v, want ErrNotFound", err)
	}
	if _, err := Resolve(doc, "div[["); err == nil {
		t.Error("invalid selector should fail")
	}
	if _, err := Resolve(doc, 42); err == nil {
		t.Error("unsupported target should fail")
	}
}

// ---------- Images ----------

func TestDiscoverImages(t *testing.T) {
	doc := mustParse(t, page)
	a, _ := Resolve(doc, "#a")
	imgs := DiscoverImages(a)
	want := []Image{{"1.jpg", "one"}, {"2.jpg", "two"}, {"3.jpg", ""}}
	if len(imgs) != len(want) {
		t.Fatalf("got %d images, want %d", len(imgs), len(want))
	}
	for i := range want {
		if imgs[i] != want[i] {
			t.Errorf("image %d = %+v, want %+v", i, imgs[i], want[i])
		}
	}
}

func TestDiscoverImages_Nested(t *testing.T) {
	doc := mustParse(t, `<div id="c"><span><img src="x.jpg"></span><img src="y.jpg"></div>`)
	c, _ := Resolve(doc, "#c")
	imgs := DiscoverImages(c)
	if len(imgs) != 2 || imgs[0].Src != "x.jpg" || imgs[1].Src != "y.jpg" {
		t.Errorf("images = %+v", imgs)
	}
}

func TestCreateImages(t *testing.T) {
	doc := mustParse(t, page)
	a, _ := Resolve(doc, "#a")
	CreateImages(a, []Image{{Src: "p.png", Title: "P"}, {Src: "q.png"}})
	imgs := DiscoverImages(a)
	if len(imgs) != 2 || imgs[0] != (Image{"p.png", "P"}) || imgs[1].Src != "q.png" {
		t.Errorf("images after replace = %+v", imgs)
	}
}

// ---------- Build ----------

func TestBuild_Structure(t *testing.T) {
	doc := mustParse(t, page)
	a, _ := Resolve(doc, "#a")
	body := a.Parent

	w, err := Build(a)
	if err != nil {
		t.Fatal(err)
	}
	if w.Wrapper.Parent != body {
		t.Error("wrapper should take the container's place")
	}
	if a.Parent != w.Wrapper {
		t.Error("container should be inside the wrapper")
	}
	if w.Wrapper.LastChild != w.Track {
		t.Error("track should follow the container in the wrapper")
	}
	if w.Thumb.Parent != w.Track {
		t.Error("thumb should be inside the track")
	}
	if w.Overlay.Parent != a {
		t.Error("overlay should be inside the container")
	}
	if len(w.Images) != 3 {
		t.Errorf("widget images = %d, want 3", len(w.Images))
	}

	class, _ := Attr(a, "class")
	if !strings.Contains(class, ClassContainer) {
		t.Errorf("container class = %q", class)
	}
	style, _ := Attr(w.Overlay, "style")
	for _, decl := range []string{"position:absolute", "z-index:1", "cursor:e-resize"} {
		if !strings.Contains(style, decl) {
			t.Errorf("overlay style %q missing %q", style, decl)
		}
	}

	out := render(t, doc)
	for _, cls := range []string{ClassWrapper, ClassOverlay, ClassTrack, ClassThumb} {
		if !strings.Contains(out, cls) {
			t.Errorf("rendered output missing %q", cls)
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Error("nil container should fail")
	}
	orphan := &html.Node{Type: html.ElementNode, Data: "div"}
	if _, err := Build(orphan); err == nil {
		t.Error("detached container should fail")
	}
}

func TestApplyVisibility(t *testing.T) {
	doc := mustParse(t, page)
	a, _ := Resolve(doc, "#a")
	w, err := Build(a)
	if err != nil {
		t.Fatal(err)
	}

	w.ApplyVisibility([]bool{false, true, false})
	w.ApplyVisibility([]bool{false, false, true})

	wantDisplay := []string{"display:none", "display:none", "display:block"}
	for i, img := range w.Images {
		style, _ := Attr(img, "style")
		if !strings.Contains(style, wantDisplay[i]) {
			t.Errorf("image %d style = %q, want %q", i, style, wantDisplay[i])
		}
		if strings.Count(style, "display:") != 1 {
			t.Errorf("image %d style has repeated display: %q", i, style)
		}
		if !strings.Contains(style, "width:100%") {
			t.Errorf("image %d lost width: %q", i, style)
		}
	}
}

func TestSetAttr_Replaces(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "div"}
	SetAttr(n, "k", "1")
	SetAttr(n, "k", "2")
	if len(n.Attr) != 1 {
		t.Fatalf("attrs = %+v", n.Attr)
	}
	if v, _ := Attr(n, "k"); v != "2" {
		t.Errorf("k = %q, want 2", v)
	}
}
