// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flashalgo

import (
	"debug/elf"
	"fmt"
	"sort"
	"strings"
)

// SegmentPolicy selects the primary code segment of an image that contains
// more than one executable segment.
type SegmentPolicy uint8

const (
	// Largest selects the segment with the largest memory size. Ties are
	// broken by the lowest address.
	Largest SegmentPolicy = iota

	// Strict rejects images with more than one executable segment.
	Strict
)

var policyNames = [...]string{Largest: "largest", Strict: "strict"}

func (p SegmentPolicy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("SegmentPolicy(%d)", p)
}

// ParseSegmentPolicy returns the policy with the given name.
func ParseSegmentPolicy(s string) (SegmentPolicy, error) {
	for i, name := range policyNames {
		if strings.EqualFold(s, name) {
			return SegmentPolicy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown segment policy %q", s)
}

// unit is a loadable piece of the image: a PT_LOAD segment or, for images
// without program headers, an allocatable section.
type unit struct {
	name  string
	addr  uint64 // address in the memory during execution
	data  []byte // file backed bytes, len(data) <= memsz
	memsz uint64
	align uint64
	exec  bool
}

func (u *unit) end() uint64 {
	return u.addr + u.memsz
}

func (u *unit) contains(addr uint64) bool {
	return u.addr <= addr && addr < u.end()
}

type units []*unit

// readUnits reads the loadable segments of the image, falling back to the
// allocatable sections if there are no program headers.
func readUnits(f *elf.File) (units, error) {
	us := make(units, 0, 4)
	for i, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}
		if p.Filesz > p.Memsz {
			return nil, layoutErr(
				"segment %d: file size %#x exceeds memory size %#x",
				i, p.Filesz, p.Memsz,
			)
		}
		if p.Filesz > MaxBlobSize {
			return nil, layoutErr("segment %d: file size %#x exceeds %#x", i, p.Filesz, uint64(MaxBlobSize))
		}
		data := make([]byte, p.Filesz)
		if p.Filesz != 0 {
			if _, err := p.ReadAt(data, 0); err != nil {
				return nil, layoutErr("segment %d: %v", i, err)
			}
		}
		us = append(us, &unit{
			name:  fmt.Sprintf("segment %d at %#x", i, p.Vaddr),
			addr:  p.Vaddr,
			data:  data,
			memsz: p.Memsz,
			align: p.Align,
			exec:  p.Flags&elf.PF_X != 0,
		})
	}
	if len(us) != 0 {
		return us, nil
	}
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		u := &unit{
			name:  "section " + s.Name,
			addr:  s.Addr,
			memsz: s.Size,
			align: s.Addralign,
			exec:  s.Flags&elf.SHF_EXECINSTR != 0,
		}
		if s.Type != elf.SHT_NOBITS {
			if s.Size > MaxBlobSize {
				return nil, layoutErr("section %s: size %#x exceeds %#x", s.Name, s.Size, uint64(MaxBlobSize))
			}
			data, err := s.Data()
			if err != nil {
				return nil, layoutErr("section %s: %v", s.Name, err)
			}
			u.data = data
		}
		us = append(us, u)
	}
	return us, nil
}

// sortByAddr sorts units according to the addr field.
func (us units) sortByAddr() {
	sort.Slice(us, func(i, j int) bool { return us[i].addr < us[j].addr })
}

// primary selects the primary code unit according to the policy.
func (p SegmentPolicy) primary(us units) (*unit, error) {
	var cand units
	for _, u := range us {
		if u.exec {
			cand = append(cand, u)
		}
	}
	switch {
	case len(cand) == 0:
		return nil, layoutErr("no executable segment")
	case len(cand) == 1:
		return cand[0], nil
	}
	ambiguous := func(us units) error {
		names := make([]string, len(us))
		for i, u := range us {
			names[i] = u.name
		}
		return &AmbiguousVariantError{names}
	}
	if p == Strict {
		return nil, ambiguous(cand)
	}
	sort.SliceStable(cand, func(i, j int) bool {
		if cand[i].memsz != cand[j].memsz {
			return cand[i].memsz > cand[j].memsz
		}
		return cand[i].addr < cand[j].addr
	})
	if cand[0].memsz == cand[1].memsz && cand[0].addr == cand[1].addr {
		return nil, ambiguous(cand[:2])
	}
	return cand[0], nil
}

// MaxBlobSize limits the size of a flattened algorithm. No target loads a
// flash algorithm larger than this into its RAM.
const MaxBlobSize = 1 << 24

// flatten concatenates the primary unit with the non-executable units that
// follow it in memory. A unit is appended if it starts at the current end
// rounded up to its alignment. Gaps and the memory only tails of
// units are zero filled. It returns the blob and the offset of the first
// appended data byte (len(blob) if nothing was appended).
func flatten(primary *unit, us units) ([]byte, uint64, error) {
	tooBig := func(u *unit, size uint64) error {
		return layoutErr("%s: blob size %#x exceeds %#x", u.name, size, uint64(MaxBlobSize))
	}
	if primary.memsz > MaxBlobSize {
		return nil, 0, tooBig(primary, primary.memsz)
	}
	rest := make(units, 0, len(us))
	for _, u := range us {
		if !u.exec && u.memsz != 0 {
			rest = append(rest, u)
		}
	}
	rest.sortByAddr()

	// Select the appended units and check the size before allocating.
	size, end, dataOff := primary.memsz, primary.end(), primary.memsz
	var app units
	for _, u := range rest {
		if u.addr < end {
			continue
		}
		if alignUp(end, max(u.align, 1)) < u.addr {
			break
		}
		gap := u.addr - end
		if gap > MaxBlobSize || u.memsz > MaxBlobSize || size+gap+u.memsz > MaxBlobSize {
			return nil, 0, tooBig(u, size+gap+u.memsz)
		}
		if len(app) == 0 {
			dataOff = size + gap
		}
		size += gap + u.memsz
		end = u.end()
		app = append(app, u)
	}

	blob := make([]byte, primary.memsz, size)
	copy(blob, primary.data)
	end = primary.end()
	for _, u := range app {
		blob = append(blob, make([]byte, u.addr-end)...)
		off := len(blob)
		blob = append(blob, make([]byte, u.memsz)...)
		copy(blob[off:], u.data)
		end = u.end()
	}
	return blob, dataOff, nil
}

// without returns a copy of u without the bytes [lo, hi). The range is cut
// off if it reaches the end of u and zeroed otherwise, so the addresses of
// the remaining bytes do not change.
func (u *unit) without(lo, hi uint64) *unit {
	c := *u
	off := lo - u.addr
	if hi >= u.end() {
		c.memsz = off
		c.data = u.data[:min(off, uint64(len(u.data)))]
		return &c
	}
	c.data = append([]byte(nil), u.data...)
	for i := off; i < hi-u.addr && i < uint64(len(c.data)); i++ {
		c.data[i] = 0
	}
	return &c
}

func alignUp(v, a uint64) uint64 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}
