package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cjeanneret/SpinGo/internal/journal"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "spinreplay:", err)
		os.Exit(1)
	}
}

// run replays the journal files named by args (or found in -dir) and
// prints the visible-frame sequence of every widget.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("spinreplay", flag.ContinueOnError)
	var (
		dir      = fs.String("dir", "", "journal dir containing input-*.jsonl.zst")
		instance = fs.String("instance", "", "only print this instance")
		asJSON   = fs.Bool("json", false, "print one JSON object per instance")
		strict   = fs.Bool("strict", false, "fail on the first bad entry")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	files := fs.Args()
	if *dir != "" {
		found, err := journal.List(*dir)
		if err != nil {
			return fmt.Errorf("list journal: %w", err)
		}
		files = append(found, files...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no journal files: pass -dir or file paths")
	}

	r := journal.NewReplayer()
	entries := 0
	for _, path := range files {
		err := journal.Read(path, func(e journal.Entry) error {
			entries++
			if err := r.Apply(e); err != nil && *strict {
				return err
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("replay %s: %w", path, err)
		}
	}

	enc := json.NewEncoder(out)
	printed := 0
	for _, res := range r.Results() {
		if *instance != "" && res.Instance != *instance {
			continue
		}
		printed++
		if *asJSON {
			if err := enc.Encode(res); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%s spinner=%s total=%d events=%d disposed=%t frames=%s\n",
			res.Instance, res.Spinner, res.Total, res.Events, res.Disposed, joinFrames(res.Frames))
	}
	if !*asJSON {
		fmt.Fprintf(out, "replay ok: files=%d entries=%d instances=%d\n", len(files), entries, printed)
	}
	if err := r.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "skipped entries:", err)
	}
	return nil
}

func joinFrames(frames []int) string {
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = strconv.Itoa(f)
	}
	return strings.Join(parts, ",")
}
