// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen

type EventKind uint8

const (
	PackStarted EventKind = iota
	DeviceDone
	DeviceFailed
	FileWritten
	PackDone
	PackFailed
	RunDone
)

var eventNames = [...]string{
	PackStarted:  "pack-started",
	DeviceDone:   "device-done",
	DeviceFailed: "device-failed",
	FileWritten:  "file-written",
	PackDone:     "pack-done",
	PackFailed:   "pack-failed",
	RunDone:      "run-done",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event reports the progress of a run. Only the fields relevant to the Kind
// are set.
type Event struct {
	Run    string
	Kind   EventKind
	Pack   string
	Device string
	File   string
	Err    error
	Total  int // PackDone
	Failed int // PackDone
}

// Reporter receives events. Report is called concurrently by the workers.
type Reporter interface {
	Report(e Event)
}

type ReporterFunc func(e Event)

func (f ReporterFunc) Report(e Event) { f(e) }
