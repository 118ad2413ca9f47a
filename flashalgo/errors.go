// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flashalgo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlgorithm is the category of all errors caused by an unusable flash
// algorithm image.
var ErrAlgorithm = errors.New("flash algorithm error")

// UnsupportedLayoutError indicates an image that does not follow the flash
// algorithm runtime conventions or does not fit into the provided RAM.
type UnsupportedLayoutError struct {
	Reason string
}

func (e *UnsupportedLayoutError) Error() string {
	return "unsupported flash algorithm layout: " + e.Reason
}

func (e *UnsupportedLayoutError) Is(target error) bool { return target == ErrAlgorithm }

// MissingSymbolError indicates that a required entry point is not defined.
type MissingSymbolError struct {
	Name string
}

func (e *MissingSymbolError) Error() string {
	return fmt.Sprintf("flash algorithm has no %s symbol", e.Name)
}

func (e *MissingSymbolError) Is(target error) bool { return target == ErrAlgorithm }

// AmbiguousVariantError indicates that the primary code segment cannot be
// chosen.
type AmbiguousVariantError struct {
	Segments []string
}

func (e *AmbiguousVariantError) Error() string {
	return "ambiguous flash algorithm: candidate code segments " +
		strings.Join(e.Segments, ", ")
}

func (e *AmbiguousVariantError) Is(target error) bool { return target == ErrAlgorithm }

func layoutErr(f string, args ...any) error {
	return &UnsupportedLayoutError{fmt.Sprintf(f, args...)}
}
