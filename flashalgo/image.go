// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flashalgo extracts CMSIS flash programming algorithms (FLM files)
// from ELF images and places them into target RAM.
package flashalgo

import (
	"bytes"
	"debug/elf"
	"errors"
)

// DefaultStackSize is the stack reserved for an algorithm if neither the pack
// nor the options specify it.
const DefaultStackSize = 0x200

// FlashDeviceSymbol is the symbol of the CMSIS FlashDevice structure.
const FlashDeviceSymbol = "FlashDevice"

// Options control the extraction.
type Options struct {
	SegmentPolicy SegmentPolicy
	StackSize     uint64 // 0 means DefaultStackSize
}

// Entry is an entry point of the algorithm. Offset is relative to the
// beginning of the blob and keeps the Thumb bit of the symbol value.
type Entry struct {
	Offset  uint64
	Present bool
}

// Entries are the entry points of the fixed flash algorithm API.
type Entries struct {
	Init        Entry
	UnInit      Entry
	EraseChip   Entry // optional, erase sector by sector if absent
	EraseSector Entry
	ProgramPage Entry
	Verify      Entry // optional
}

type entrySpec struct {
	name     string
	required bool
	field    func(*Entries) *Entry
}

var entrySpecs = [...]entrySpec{
	{"Init", true, func(e *Entries) *Entry { return &e.Init }},
	{"UnInit", true, func(e *Entries) *Entry { return &e.UnInit }},
	{"EraseChip", false, func(e *Entries) *Entry { return &e.EraseChip }},
	{"EraseSector", true, func(e *Entries) *Entry { return &e.EraseSector }},
	{"ProgramPage", true, func(e *Entries) *Entry { return &e.ProgramPage }},
	{"Verify", false, func(e *Entries) *Entry { return &e.Verify }},
}

// Image is a parsed flash algorithm that is not yet placed in RAM. It is a
// pure function of the ELF bytes and the options and may be shared.
type Image struct {
	Blob         []byte // position independent code and data
	Base         uint64 // link address of Blob[0]
	DataOffset   uint64 // offset of the data part in Blob (static base)
	Entries      Entries
	Device       *FlashDevice // nil if the image does not export FlashDevice
	Machine      elf.Machine
	AddressWidth int
	BigEndian    bool

	stackSize uint64
}

func lookupSymbols(f *elf.File) (map[string]elf.Symbol, error) {
	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, layoutErr("symbol table: %v", err)
	}
	m := make(map[string]elf.Symbol, len(syms))
	for _, s := range syms {
		if s.Name == "" || s.Section == elf.SHN_UNDEF {
			continue
		}
		if old, ok := m[s.Name]; ok && elf.ST_BIND(old.Info) == elf.STB_GLOBAL {
			continue
		}
		m[s.Name] = s
	}
	return m, nil
}

// deviceEnd returns the end address of the FlashDevice structure: the end of
// the symbol if its size is known, else the end of its section, else the end
// of the unit.
func deviceEnd(f *elf.File, sym elf.Symbol, u *unit) uint64 {
	if sym.Size != 0 {
		return sym.Value + sym.Size
	}
	if int(sym.Section) < len(f.Sections) {
		if s := f.Sections[sym.Section]; s.Addr <= sym.Value && sym.Value < s.Addr+s.Size {
			return s.Addr + s.Size
		}
	}
	return u.end()
}

// Parse parses an ELF flash algorithm image.
func Parse(data []byte, opts Options) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, layoutErr("not an ELF image: %v", err)
	}
	defer f.Close()
	syms, err := lookupSymbols(f)
	if err != nil {
		return nil, err
	}
	us, err := readUnits(f)
	if err != nil {
		return nil, err
	}
	primary, err := opts.SegmentPolicy.primary(us)
	if err != nil {
		return nil, err
	}
	im := &Image{
		Base:         primary.addr,
		Machine:      f.Machine,
		AddressWidth: 32,
		BigEndian:    f.Data == elf.ELFDATA2MSB,
		stackSize:    opts.StackSize,
	}
	if f.Class == elf.ELFCLASS64 {
		im.AddressWidth = 64
	}
	if sym, ok := syms[FlashDeviceSymbol]; ok {
		if im.Device, err = readFlashDevice(f, sym); err != nil {
			return nil, err
		}
		// The descriptor is read by the host, it is not loaded to RAM.
		for i, u := range us {
			if u != primary && u.contains(sym.Value) {
				us[i] = u.without(sym.Value, deviceEnd(f, sym, u))
				break
			}
		}
	}
	if im.Blob, im.DataOffset, err = flatten(primary, us); err != nil {
		return nil, err
	}
	end := im.Base + uint64(len(im.Blob))
	for _, es := range entrySpecs {
		sym, ok := syms[es.name]
		if !ok {
			if es.required {
				return nil, &MissingSymbolError{es.name}
			}
			continue
		}
		if addr := sym.Value &^ 1; addr < im.Base || addr >= end {
			return nil, layoutErr(
				"%s at %#x is outside the code range %#x-%#x",
				es.name, sym.Value, im.Base, end,
			)
		}
		*es.field(&im.Entries) = Entry{Offset: sym.Value - im.Base, Present: true}
	}
	return im, nil
}
