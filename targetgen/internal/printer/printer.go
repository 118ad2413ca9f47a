// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package printer prints the progress of a generation run.
package printer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/embeddedgo/targetgen/targetgen/internal/gen"
)

func init() {
	// Colour is forced even without a terminal unless NO_COLOR is set.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Reporter implements gen.Reporter. Verbose enables a line per generated
// device and written file.
type Reporter struct {
	Verbose bool

	mu      sync.Mutex
	w       io.Writer
	run     string
	packs   int
	failed  int
	devices int
	broken  int
	files   int
}

func New(w io.Writer, verbose bool) *Reporter {
	return &Reporter{w: w, Verbose: verbose}
}

func (r *Reporter) Report(e gen.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run = e.Run
	switch e.Kind {
	case gen.PackStarted:
		cyan.Fprintf(r.w, "→ %s\n", e.Pack)
	case gen.DeviceDone:
		r.devices++
		if r.Verbose {
			green.Fprintf(r.w, "  ✓ %s\n", e.Device)
		}
	case gen.DeviceFailed:
		r.devices++
		r.broken++
		yellow.Fprintf(r.w, "  ⚠️  %v\n", e.Err)
	case gen.FileWritten:
		r.files++
		if r.Verbose {
			fmt.Fprintf(r.w, "  %s\n", e.File)
		}
	case gen.PackDone:
		r.packs++
		green.Fprintf(r.w, "✓ %s: %d of %d variants\n", e.Pack, e.Total-e.Failed, e.Total)
	case gen.PackFailed:
		r.packs++
		r.failed++
		red.Fprintf(r.w, "✗ %s: %v\n", e.Pack, e.Err)
	case gen.RunDone:
		r.summary()
	}
}

func (r *Reporter) summary() {
	c := green
	if r.failed != 0 {
		c = red
	} else if r.broken != 0 {
		c = yellow
	}
	c.Fprintf(
		r.w, "run %s: %d packs (%d failed), %d variants (%d failed), %d files\n",
		r.run, r.packs, r.failed, r.devices, r.broken, r.files,
	)
}

type printedError string

func (e printedError) Error() string { return string(e) }

// Error prints a failed command with its explanation to stderr and returns
// an error holding only the title.
func Error(title string, err error) error {
	red.Fprintf(os.Stderr, "%s\n", title)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	return printedError(title)
}

// Printed reports whether err was returned by Error, that is, whether it
// was already shown to the user.
func Printed(err error) bool {
	var pe printedError
	return errors.As(err, &pe)
}
