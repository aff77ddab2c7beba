// Package journal records widget input as hourly zstd-compressed JSONL
// files and replays it.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cjeanneret/SpinGo/internal/spin"
	"github.com/cjeanneret/SpinGo/internal/spin/gesture"
)

// Kind tells what an entry records.
type Kind string

const (
	KindMount   Kind = "mount"
	KindEvent   Kind = "event"
	KindDispose Kind = "dispose"
)

// Entry is one journal line.
type Entry struct {
	Time     time.Time      `json:"t"`
	Instance string         `json:"instance"`
	Kind     Kind           `json:"kind"`
	Spinner  string         `json:"spinner,omitempty"`
	Total    int            `json:"total,omitempty"`
	Start    int            `json:"start,omitempty"`
	Target   gesture.Target `json:"target,omitempty"`
	Event    *gesture.Event `json:"event,omitempty"`
}

const filePrefix = "input"

var _ spin.Recorder = (*Writer)(nil)

// Writer appends entries to <dir>/input-YYYY-MM-DD-HH.jsonl.zst, opening
// a new file every UTC hour.
type Writer struct {
	baseDir string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewWriter returns a writer for dir. Files are created on first write.
func NewWriter(dir string) *Writer {
	return &Writer{baseDir: dir, now: time.Now}
}

func (w *Writer) RecordMount(instance, spinner string, total, startFrame int) error {
	return w.Write(Entry{Instance: instance, Kind: KindMount, Spinner: spinner, Total: total, Start: startFrame})
}

func (w *Writer) RecordEvent(instance string, target gesture.Target, ev gesture.Event) error {
	return w.Write(Entry{Instance: instance, Kind: KindEvent, Target: target, Event: &ev})
}

func (w *Writer) RecordDispose(instance string) error {
	return w.Write(Entry{Instance: instance, Kind: KindDispose})
}

// Write appends e, stamping it with the current time when unset.
func (w *Writer) Write(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	if e.Time.IsZero() {
		e.Time = now
	}
	hour := now.Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("journal: %w", err)
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", filePrefix, hour))
}

// List returns the journal files of dir in chronological order.
func List(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// Read streams the entries of one journal file to fn.
func Read(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
