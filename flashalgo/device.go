// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flashalgo

import (
	"bytes"
	"debug/elf"
)

// DeviceType is the FlashDevice.DevType field.
type DeviceType uint16

const (
	Unknown  DeviceType = 0
	OnChip   DeviceType = 1
	Ext8Bit  DeviceType = 2
	Ext16Bit DeviceType = 3
	Ext32Bit DeviceType = 4
	ExtSPI   DeviceType = 5
)

// Sector describes a run of equally sized sectors that starts at Offset from
// the beginning of the flash device and lasts up to the next Sector.
type Sector struct {
	Size   uint64
	Offset uint64
}

// FlashDevice is the decoded CMSIS FlashDevice structure that flash
// algorithms export under the FlashDevice symbol.
type FlashDevice struct {
	Version        uint16
	Name           string
	Type           DeviceType
	Addr           uint64
	Size           uint64
	PageSize       uint64
	ErasedValue    uint8
	ProgramTimeout uint32 // ms
	EraseTimeout   uint32 // ms
	Sectors        []Sector
}

// FlashDevice layout (all fields use the image byte order).
const (
	fdVersion      = 0
	fdName         = 2
	fdNameLen      = 128
	fdType         = 130
	fdAddr         = 132
	fdSize         = 136
	fdPageSize     = 140
	fdErasedValue  = 148
	fdProgTimeout  = 152
	fdEraseTimeout = 156
	fdSectors      = 160
	fdSectorsEnd   = 0xffffffff
	fdMaxSectors   = 512
)

// readFlashDevice decodes the FlashDevice structure pointed by sym.
func readFlashDevice(f *elf.File, sym elf.Symbol) (*FlashDevice, error) {
	if int(sym.Section) <= 0 || int(sym.Section) >= len(f.Sections) {
		return nil, layoutErr("FlashDevice symbol is not defined in a section")
	}
	s := f.Sections[sym.Section]
	if s.Type == elf.SHT_NOBITS {
		return nil, layoutErr("FlashDevice is in a section without data (%s)", s.Name)
	}
	data, err := s.Data()
	if err != nil {
		return nil, layoutErr("FlashDevice section %s: %v", s.Name, err)
	}
	off := sym.Value
	if f.Type != elf.ET_REL {
		off -= s.Addr
	}
	if off >= uint64(len(data)) {
		return nil, layoutErr("FlashDevice outside its section %s", s.Name)
	}
	b := data[off:]
	if sym.Size != 0 && sym.Size < uint64(len(b)) {
		b = b[:sym.Size]
	}
	if len(b) < fdSectors {
		return nil, layoutErr("FlashDevice truncated to %d bytes", len(b))
	}
	bo := f.ByteOrder
	name := b[fdName : fdName+fdNameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	dev := &FlashDevice{
		Version:        bo.Uint16(b[fdVersion:]),
		Name:           string(name),
		Type:           DeviceType(bo.Uint16(b[fdType:])),
		Addr:           uint64(bo.Uint32(b[fdAddr:])),
		Size:           uint64(bo.Uint32(b[fdSize:])),
		PageSize:       uint64(bo.Uint32(b[fdPageSize:])),
		ErasedValue:    b[fdErasedValue],
		ProgramTimeout: bo.Uint32(b[fdProgTimeout:]),
		EraseTimeout:   bo.Uint32(b[fdEraseTimeout:]),
	}
	for p := b[fdSectors:]; len(p) >= 8 && len(dev.Sectors) < fdMaxSectors; p = p[8:] {
		size, addr := bo.Uint32(p), bo.Uint32(p[4:])
		if size == fdSectorsEnd && addr == fdSectorsEnd {
			break
		}
		dev.Sectors = append(dev.Sectors, Sector{Size: uint64(size), Offset: uint64(addr)})
	}
	return dev, nil
}

// SectorAt returns the size of the sector that contains the offset.
func (d *FlashDevice) SectorAt(offset uint64) (uint64, bool) {
	var size uint64
	found := false
	for _, s := range d.Sectors {
		if s.Offset > offset {
			break
		}
		size, found = s.Size, true
	}
	return size, found
}
