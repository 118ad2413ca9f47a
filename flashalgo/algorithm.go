// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flashalgo

import (
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// Metadata are the parameters that accompany an algorithm reference in the
// pack. Nil fields are unset. Set fields take precedence over the values
// read from the image.
type Metadata struct {
	Name       string
	Default    bool
	Core       string
	FlashStart *uint64
	FlashSize  *uint64
	RAMStart   *uint64
	RAMSize    *uint64
	PageSize   *uint64
	SectorSize *uint64
	BufferSize *uint64
	StackSize  *uint64
}

// Algorithm is a flash algorithm placed into target RAM:
//
//	LoadAddress    blob (code, data, zero initialised data)
//	BufferAddress  page buffer of BufferSize bytes
//	...            free RAM, at least StackSize bytes
//	StackPointer   initial stack pointer (top of the RAM, 8 byte aligned)
type Algorithm struct {
	Name           string
	Description    string
	Default        bool
	Core           string
	Blob           []byte
	LoadAddress    uint64
	StaticBase     uint64
	BufferAddress  uint64
	StackPointer   uint64
	StackSize      uint64
	Entries        Entries
	FlashStart     uint64
	FlashSize      uint64
	PageSize       uint64
	SectorSize     uint64
	BufferSize     uint64
	ErasedValue    uint8
	ProgramTimeout uint32
	EraseTimeout   uint32
	Sectors        []Sector
	AddressWidth   int
}

func pick(vals ...*uint64) (uint64, bool) {
	for _, v := range vals {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

func ptr(v uint64) *uint64 { return &v }

// Place applies the pack metadata to the image and lays it out in RAM.
func (im *Image) Place(meta Metadata) (*Algorithm, error) {
	a := &Algorithm{
		Name:         meta.Name,
		Default:      meta.Default,
		Core:         meta.Core,
		Blob:         im.Blob,
		Entries:      im.Entries,
		AddressWidth: im.AddressWidth,
		ErasedValue:  0xff,
	}
	var devPage, devAddr, devSize, devSector *uint64
	if d := im.Device; d != nil {
		a.Description = d.Name
		a.ErasedValue = d.ErasedValue
		a.ProgramTimeout = d.ProgramTimeout
		a.EraseTimeout = d.EraseTimeout
		a.Sectors = d.Sectors
		if d.PageSize != 0 {
			devPage = ptr(d.PageSize)
		}
		devAddr, devSize = ptr(d.Addr), ptr(d.Size)
		if size, ok := d.SectorAt(0); ok && size != 0 {
			devSector = ptr(size)
		}
	}
	var ok bool
	if a.PageSize, ok = pick(meta.PageSize, devPage); !ok || a.PageSize == 0 {
		return nil, layoutErr("page size is not defined")
	}
	if meta.SectorSize != nil {
		a.Sectors = []Sector{{Size: *meta.SectorSize}}
	}
	if a.SectorSize, ok = pick(meta.SectorSize, devSector); !ok || a.SectorSize == 0 {
		return nil, layoutErr("sector size is not defined")
	}
	a.FlashStart, _ = pick(meta.FlashStart, devAddr)
	a.FlashSize, _ = pick(meta.FlashSize, devSize)
	a.BufferSize, _ = pick(meta.BufferSize, &a.PageSize)
	stack := im.stackSize
	if stack == 0 {
		stack = DefaultStackSize
	}
	a.StackSize, _ = pick(meta.StackSize, &stack)

	if meta.RAMStart == nil || meta.RAMSize == nil || *meta.RAMSize == 0 {
		return nil, layoutErr("no RAM to load the algorithm")
	}
	ramStart, ramSize := *meta.RAMStart, *meta.RAMSize
	ramEnd := ramStart + ramSize
	if ramEnd < ramStart {
		return nil, layoutErr("RAM range %#x+%#x overflows", ramStart, ramSize)
	}
	a.LoadAddress = ramStart
	a.StaticBase = ramStart + im.DataOffset
	a.BufferAddress = ramStart + alignUp(uint64(len(im.Blob)), 4)
	a.StackPointer = ramEnd &^ 7
	need := a.BufferAddress + a.BufferSize + a.StackSize
	if need > a.StackPointer {
		return nil, layoutErr(
			"algorithm needs %#x bytes of RAM, %#x available at %#x",
			need-ramStart, a.StackPointer-ramStart, ramStart,
		)
	}
	return a, nil
}

// Extract parses the image and places it according to meta.
func Extract(data []byte, meta Metadata, opts Options) (*Algorithm, error) {
	im, err := Parse(data, opts)
	if err != nil {
		return nil, err
	}
	return im.Place(meta)
}

// WriteHex writes the blob at its load address in the Intel HEX format.
func (a *Algorithm) WriteHex(w io.Writer) error {
	addr := uint32(a.LoadAddress)
	if uint64(addr) != a.LoadAddress {
		return fmt.Errorf("hex: load address %#x doesn't fit in 32 bits", a.LoadAddress)
	}
	mem := gohex.NewMemory()
	if err := mem.AddBinary(addr, a.Blob); err != nil {
		return err
	}
	return mem.DumpIntelHex(w, 16)
}
