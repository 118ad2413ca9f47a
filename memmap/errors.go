// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"errors"
	"fmt"
)

// ErrResolution is the category of all errors that prevent resolving a
// device variant.
var ErrResolution = errors.New("memory map resolution error")

// NoCoreError indicates a variant without any processor declaration on its
// path to the root.
type NoCoreError struct {
	Variant string
}

func (e *NoCoreError) Error() string {
	return fmt.Sprintf("%s: no processor defined", e.Variant)
}

func (e *NoCoreError) Is(target error) bool { return target == ErrResolution }

// UnknownCoreError indicates a Dcore value that does not map to a known
// core type.
type UnknownCoreError struct {
	Variant string
	Core    string
}

func (e *UnknownCoreError) Error() string {
	return fmt.Sprintf("%s: unknown core %q", e.Variant, e.Core)
}

func (e *UnknownCoreError) Is(target error) bool { return target == ErrResolution }

// OverlapError indicates two overlapping regions declared at the same depth
// of the tree, so none of them is more specific.
type OverlapError struct {
	Variant string
	A, B    Region
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf(
		"%s: regions %s [%#x-%#x) and %s [%#x-%#x) overlap at the same level",
		e.Variant, e.A.Name, e.A.Start, e.A.End(), e.B.Name, e.B.Start, e.B.End(),
	)
}

func (e *OverlapError) Is(target error) bool { return target == ErrResolution }

// BadMemoryError indicates a memory declaration that cannot be interpreted.
type BadMemoryError struct {
	Variant string
	Name    string
	Err     error
}

func (e *BadMemoryError) Error() string {
	return fmt.Sprintf("%s: memory %s: %v", e.Variant, e.Name, e.Err)
}

func (e *BadMemoryError) Unwrap() error        { return e.Err }
func (e *BadMemoryError) Is(target error) bool { return target == ErrResolution }
