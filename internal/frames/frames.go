// Package frames loads spin image sets from disk and serves them as WebP.
package frames

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/cjeanneret/SpinGo/internal/debug"
)

// ErrNoFrames is returned when a directory holds no supported image.
var ErrNoFrames = errors.New("frames: no frame images")

// decoders maps a lower-case file extension to its image decoder. The TGA
// format has no magic number, so frames are never sniffed.
var decoders = map[string]func(io.Reader) (image.Image, error){
	".png":  png.Decode,
	".jpg":  jpeg.Decode,
	".jpeg": jpeg.Decode,
	".gif":  gif.Decode,
	".bmp":  bmp.Decode,
	".tga":  tga.Decode,
	".webp": webp.Decode,
}

// Set is an ordered list of frame files. Encoded frames are cached.
type Set struct {
	dir      string
	files    []string
	maxWidth int

	mu    sync.Mutex
	cache map[int][]byte
}

// Load discovers the frame files of dir, sorted by name. maxWidth > 0
// downscales wider frames when they are encoded.
func Load(dir string, maxWidth int) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("frames: read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, ok := decoders[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, dir)
	}
	sort.Strings(files)
	debug.Verbose("Loaded %d frame(s) from %s", len(files), dir)
	return &Set{dir: dir, files: files, maxWidth: maxWidth, cache: make(map[int][]byte)}, nil
}

// Len returns the number of frames.
func (s *Set) Len() int { return len(s.files) }

// Name returns the file name of 1-based frame n.
func (s *Set) Name(n int) (string, error) {
	if n < 1 || n > len(s.files) {
		return "", fmt.Errorf("frames: frame %d out of range 1..%d", n, len(s.files))
	}
	return s.files[n-1], nil
}

// WebP returns 1-based frame n encoded as lossless WebP.
func (s *Set) WebP(n int) ([]byte, error) {
	name, err := s.Name(n)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.cache[n]; ok {
		return b, nil
	}

	img, err := decode(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	img = fit(img, s.maxWidth)

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("frames: encode %s: %w", name, err)
	}
	s.cache[n] = buf.Bytes()
	debug.Trace("Encoded frame %d (%s): %d bytes", n, name, buf.Len())
	return s.cache[n], nil
}

func decode(path string) (image.Image, error) {
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("frames: decode %s: unsupported format", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("frames: open %s: %w", path, err)
	}
	defer f.Close()
	img, err := dec(f)
	if err != nil {
		return nil, fmt.Errorf("frames: decode %s: %w", path, err)
	}
	return img, nil
}

// fit scales img down to maxWidth, keeping its aspect ratio.
func fit(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
