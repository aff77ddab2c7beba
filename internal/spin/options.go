package spin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cjeanneret/SpinGo/internal/spin/rotation"
)

// MarkerAttr is the attribute that marks an element for auto-initialization.
// Its value is the optional JSON configuration.
const MarkerAttr = "data-spin"

// ErrConfig is returned for configuration that cannot be used to build a widget.
var ErrConfig = errors.New("spin: invalid configuration")

// ImageRef describes one frame image.
type ImageRef struct {
	Src   string `json:"src"`
	Title string `json:"title,omitempty"`
}

// Options is the widget configuration.
type Options struct {
	// Images, when non-empty, replaces any images already in the container.
	Images []ImageRef `json:"images,omitempty"`
	// CurrImage is the 1-based start frame. Strings and numbers are accepted;
	// anything non-numeric falls back to 1.
	CurrImage any `json:"currImage,omitempty"`
}

// StartFrame returns the configured start frame.
func (o Options) StartFrame() int {
	return rotation.ParseStartFrame(o.CurrImage)
}

const optionsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "images": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "src": {"type": "string"},
          "title": {"type": "string"}
        },
        "required": ["src"]
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("spin-options.schema.json", optionsSchema)

// ParseOptions decodes and validates the JSON stored in the marker attribute.
// An empty attribute yields the defaults.
func ParseOptions(attr string) (Options, error) {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return Options{}, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(attr), &doc); err != nil {
		return Options{}, fmt.Errorf("%w: parse %s: %v", ErrConfig, MarkerAttr, err)
	}
	if err := schema.Validate(doc); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	var opts Options
	dec := json.NewDecoder(bytes.NewReader([]byte(attr)))
	dec.UseNumber()
	if err := dec.Decode(&opts); err != nil {
		return Options{}, fmt.Errorf("%w: decode %s: %v", ErrConfig, MarkerAttr, err)
	}
	return opts, nil
}

// ResolveOptions picks the configuration for a widget: a direct argument
// wins over the attribute JSON.
func ResolveOptions(direct *Options, attr string) (Options, error) {
	if direct != nil {
		return *direct, nil
	}
	return ParseOptions(attr)
}
