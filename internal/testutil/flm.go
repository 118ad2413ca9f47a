// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"debug/elf"
	"encoding/binary"
	"slices"
)

// FlashDevice mirrors the CMSIS FlashDevice structure. Sectors holds
// (size, offset) pairs.
type FlashDevice struct {
	Version      uint16
	Name         string
	Type         uint16
	Addr         uint32
	Size         uint32
	PageSize     uint32
	Empty        uint8
	ProgTimeout  uint32
	EraseTimeout uint32
	Sectors      [][2]uint32
}

// Bytes encodes d using the CMSIS layout, including the 0xFFFFFFFF
// terminator of the sector table.
func (d *FlashDevice) Bytes(order binary.ByteOrder) []byte {
	b := make([]byte, 160+8*(len(d.Sectors)+1))
	order.PutUint16(b[0:], d.Version)
	copy(b[2:129], d.Name)
	order.PutUint16(b[130:], d.Type)
	order.PutUint32(b[132:], d.Addr)
	order.PutUint32(b[136:], d.Size)
	order.PutUint32(b[140:], d.PageSize)
	b[148] = d.Empty
	order.PutUint32(b[152:], d.ProgTimeout)
	order.PutUint32(b[156:], d.EraseTimeout)
	p := b[160:]
	for _, s := range d.Sectors {
		order.PutUint32(p[0:], s[0])
		order.PutUint32(p[4:], s[1])
		p = p[8:]
	}
	order.PutUint32(p[0:], 0xffffffff)
	order.PutUint32(p[4:], 0xffffffff)
	return b
}

// DefaultEntries are the entry point offsets used by FLM when Entries is nil.
// The values carry the Thumb bit.
var DefaultEntries = map[string]uint64{
	"Init":        0x01,
	"UnInit":      0x11,
	"EraseChip":   0x21,
	"EraseSector": 0x31,
	"ProgramPage": 0x41,
	"Verify":      0x51,
}

// FLM describes a synthetic CMSIS flash algorithm image: PrgCode at address
// 0, PrgData right after it, an optional zero initialised tail and an
// optional DevDscr segment holding the FlashDevice structure.
type FLM struct {
	Class   elf.Class
	Order   binary.ByteOrder
	Code    []byte
	Data    []byte
	BSS     uint64
	Entries map[string]uint64
	Omit    []string
	Device  *FlashDevice
}

// DefaultDevice returns a 64 KiB device with 1 KiB pages and uniform 4 KiB
// sectors at 0x08000000.
func DefaultDevice() *FlashDevice {
	return &FlashDevice{
		Version:      0x0101,
		Name:         "ACME 64kB Flash",
		Type:         1,
		Addr:         0x08000000,
		Size:         0x10000,
		PageSize:     0x400,
		Empty:        0xff,
		ProgTimeout:  100,
		EraseTimeout: 3000,
		Sectors:      [][2]uint32{{0x1000, 0}},
	}
}

// NewFLM returns a well formed algorithm image description.
func NewFLM() *FLM {
	code := make([]byte, 0x80)
	for i := range code {
		code[i] = byte(i)
	}
	data := make([]byte, 0x10)
	for i := range data {
		data[i] = 0xa0 + byte(i)
	}
	return &FLM{
		Code:   code,
		Data:   data,
		BSS:    0x20,
		Device: DefaultDevice(),
	}
}

// ELF returns the image layout.
func (f *FLM) ELF() *ELF {
	order := f.Order
	if order == nil {
		order = binary.LittleEndian
	}
	e := &ELF{Class: f.Class, Order: order, Machine: elf.EM_ARM}
	e.Sections = append(e.Sections, Section{
		Name: "PrgCode", Type: elf.SHT_PROGBITS,
		Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Data: f.Code,
	})
	e.Segments = append(e.Segments, Segment{
		Flags: elf.PF_R | elf.PF_X, Sections: []string{"PrgCode"},
	})
	end := uint64(len(f.Code))
	var data []string
	if len(f.Data) != 0 {
		e.Sections = append(e.Sections, Section{
			Name: "PrgData", Type: elf.SHT_PROGBITS,
			Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: end, Data: f.Data,
		})
		data = append(data, "PrgData")
		end += uint64(len(f.Data))
	}
	if f.BSS != 0 {
		e.Sections = append(e.Sections, Section{
			Name: "PrgData.bss", Type: elf.SHT_NOBITS,
			Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: end, Size: f.BSS,
		})
		data = append(data, "PrgData.bss")
		end += f.BSS
	}
	if len(data) != 0 {
		e.Segments = append(e.Segments, Segment{
			Flags: elf.PF_R | elf.PF_W, Sections: data,
		})
	}
	if f.Device != nil {
		dev := f.Device.Bytes(order)
		e.Sections = append(e.Sections, Section{
			Name: "DevDscr", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC,
			Addr: alignUp(end, 4), Data: dev,
		})
		e.Segments = append(e.Segments, Segment{
			Flags: elf.PF_R, Sections: []string{"DevDscr"},
		})
		e.Symbols = append(e.Symbols, Symbol{
			Name: "FlashDevice", Value: alignUp(end, 4),
			Size: uint64(len(dev)), Type: elf.STT_OBJECT, Section: "DevDscr",
		})
	}
	entries := f.Entries
	if entries == nil {
		entries = DefaultEntries
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if slices.Contains(f.Omit, name) {
			continue
		}
		e.Symbols = append(e.Symbols, Symbol{
			Name: name, Value: entries[name], Type: elf.STT_FUNC,
			Section: "PrgCode",
		})
	}
	return e
}

// Bytes returns the encoded image.
func (f *FLM) Bytes() []byte {
	return f.ELF().Bytes()
}
