// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memmap resolves the inherited processor, memory and flash
// algorithm declarations of a pack family tree into flat device variants.
package memmap

import (
	"fmt"
	"slices"
	"strings"
)

type Kind uint8

const (
	RAM Kind = iota
	ROM
	Flash
	Device
)

var kindNames = [...]string{RAM: "ram", ROM: "rom", Flash: "flash", Device: "device"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown region kind %q", s)
}

// Access describes the access attribute of a memory declaration.
type Access struct {
	Read       bool
	Write      bool
	Execute    bool
	Peripheral bool
	Secure     bool
	NonSecure  bool
	Callable   bool // non-secure callable
}

const accessLetters = "rwxpsnc"

func (a *Access) flags() [7]*bool {
	return [7]*bool{
		&a.Read, &a.Write, &a.Execute, &a.Peripheral,
		&a.Secure, &a.NonSecure, &a.Callable,
	}
}

// ParseAccess parses the access attribute string, e.g. "rwx" or "rp".
func ParseAccess(s string) (Access, error) {
	var a Access
	flags := a.flags()
	for _, c := range s {
		i := strings.IndexRune(accessLetters, c)
		if i < 0 {
			return Access{}, fmt.Errorf("bad access attribute %q", s)
		}
		*flags[i] = true
	}
	return a, nil
}

func (a Access) String() string {
	var sb strings.Builder
	for i, f := range a.flags() {
		if *f {
			sb.WriteByte(accessLetters[i])
		}
	}
	return sb.String()
}

// Region is a resolved memory region.
type Region struct {
	Kind      Kind
	Name      string
	Start     uint64
	Size      uint64
	Access    Access
	Default   bool
	Startup   bool
	Cores     []string // empty means all cores
	Algorithm string   // name of the flash algorithm, Flash only
}

// End returns the first address after the region.
func (r *Region) End() uint64 {
	return r.Start + r.Size
}

func (r *Region) overlaps(start, end uint64) bool {
	return r.Start < end && start < r.End()
}

// Core is a resolved processor core.
type Core struct {
	Name         string
	Type         string // armv6m, armv7em...
	AddressWidth int
	Processor    string // Dcore
	FPU          string
	MPU          string
	TrustZone    string
	DSP          string
	Endian       string
	Clock        uint64
}

// AlgorithmRef is a reference to a flash algorithm image in the archive with
// its pack declared parameters.
type AlgorithmRef struct {
	Name     string // unique in the variant
	Path     string // entry path as declared, relative to the descriptor
	Region   string // explicit target region, may be empty
	Start    uint64
	Size     uint64
	RAMStart *uint64
	RAMSize  *uint64
	Default  bool
	Core     string
	Style    string
}

// Variant is a concrete device variant with everything inherited from its
// ancestors resolved. It shares no memory with the tree it comes from.
type Variant struct {
	Pack       string
	Vendor     string
	Family     string
	SubFamily  string
	Device     string
	Name       string
	SVD        string
	Cores      []Core
	Regions    []Region
	Algorithms []AlgorithmRef
}

// ID returns the variant identifier.
func (v *Variant) ID() string {
	return v.Name
}

// Region returns the first region with the given name.
func (v *Variant) Region(name string) (*Region, bool) {
	for i := range v.Regions {
		if v.Regions[i].Name == name {
			return &v.Regions[i], true
		}
	}
	return nil, false
}

// Algorithm returns the algorithm reference with the given name.
func (v *Variant) Algorithm(name string) (*AlgorithmRef, bool) {
	for i := range v.Algorithms {
		if v.Algorithms[i].Name == name {
			return &v.Algorithms[i], true
		}
	}
	return nil, false
}

// RAMFor returns the first RAM region usable by the core (any core if core
// is empty).
func (v *Variant) RAMFor(core string) (*Region, bool) {
	for i := range v.Regions {
		r := &v.Regions[i]
		if r.Kind != RAM || r.Size == 0 {
			continue
		}
		if core == "" || len(r.Cores) == 0 || slices.Contains(r.Cores, core) {
			return r, true
		}
	}
	return nil, false
}
