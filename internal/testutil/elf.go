// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testutil builds synthetic ELF images and packs for tests.
package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Section describes one section of a synthetic ELF image. A SHT_NOBITS
// section occupies Size bytes of memory and no file bytes, other sections
// occupy len(Data) bytes.
type Section struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint64
	Data  []byte
	Size  uint64
}

func (s *Section) size() uint64 {
	if s.Type == elf.SHT_NOBITS {
		return s.Size
	}
	return uint64(len(s.Data))
}

// Segment describes a PT_LOAD program header that covers the named sections.
// The sections must be consecutive in the ELF.Sections slice and in memory.
type Segment struct {
	Flags    elf.ProgFlag
	Sections []string
	Align    uint64
}

// Symbol describes a global symbol. An empty Section makes it absolute.
type Symbol struct {
	Name    string
	Value   uint64
	Size    uint64
	Type    elf.SymType
	Section string
}

// ELF is a minimal ELF writer. The zero Class means ELFCLASS32, the nil Order
// means little-endian.
type ELF struct {
	Class    elf.Class
	Order    binary.ByteOrder
	Machine  elf.Machine
	Type     elf.Type
	Sections []Section
	Segments []Segment
	Symbols  []Symbol
}

type strtab struct {
	data []byte
}

func (t *strtab) add(s string) uint32 {
	if len(t.data) == 0 {
		t.data = []byte{0}
	}
	if s == "" {
		return 0
	}
	off := len(t.data)
	t.data = append(t.data, s...)
	t.data = append(t.data, 0)
	return uint32(off)
}

func alignUp(v, a uint64) uint64 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}

// Bytes returns the encoded image.
func (e *ELF) Bytes() []byte {
	is64 := e.Class == elf.ELFCLASS64
	order := e.Order
	if order == nil {
		order = binary.LittleEndian
	}
	class := elf.ELFCLASS32
	ehsize, phentsize, shentsize, symentsize := 52, 32, 40, 16
	if is64 {
		class = elf.ELFCLASS64
		ehsize, phentsize, shentsize, symentsize = 64, 56, 64, 24
	}
	machine := e.Machine
	if machine == elf.EM_NONE {
		machine = elf.EM_ARM
	}
	typ := e.Type
	if typ == elf.ET_NONE {
		typ = elf.ET_EXEC
	}

	index := make(map[string]int, len(e.Sections))
	for i, s := range e.Sections {
		index[s.Name] = i + 1
	}
	segFirst := make(map[string]string)
	for _, sg := range e.Segments {
		for _, name := range sg.Sections[1:] {
			segFirst[name] = sg.Sections[0]
		}
	}

	// Lay out section contents.
	off := uint64(ehsize + phentsize*len(e.Segments))
	offs := make(map[string]uint64, len(e.Sections))
	for i := range e.Sections {
		s := &e.Sections[i]
		o := alignUp(off, 4)
		if first, ok := segFirst[s.Name]; ok {
			fs := &e.Sections[index[first]-1]
			if c := offs[first] + s.Addr - fs.Addr; c >= off {
				o = c
			}
		}
		offs[s.Name] = o
		if s.Type != elf.SHT_NOBITS && o+s.size() > off {
			off = o + s.size()
		}
	}

	var shstr, str strtab
	shstr.add("")
	str.add("")
	var syms bytes.Buffer
	if is64 {
		binary.Write(&syms, order, elf.Sym64{})
	} else {
		binary.Write(&syms, order, elf.Sym32{})
	}
	for _, sym := range e.Symbols {
		shndx := uint16(elf.SHN_ABS)
		if sym.Section != "" {
			shndx = uint16(index[sym.Section])
		}
		info := byte(elf.STB_GLOBAL)<<4 | byte(sym.Type)&0xf
		name := str.add(sym.Name)
		if is64 {
			binary.Write(&syms, order, elf.Sym64{
				Name: name, Info: info, Shndx: shndx,
				Value: sym.Value, Size: sym.Size,
			})
		} else {
			binary.Write(&syms, order, elf.Sym32{
				Name: name, Value: uint32(sym.Value), Size: uint32(sym.Size),
				Info: info, Shndx: shndx,
			})
		}
	}
	names := make([]uint32, len(e.Sections))
	for i, s := range e.Sections {
		names[i] = shstr.add(s.Name)
	}
	symtabName := shstr.add(".symtab")
	strtabName := shstr.add(".strtab")
	shstrtabName := shstr.add(".shstrtab")

	symtabOff := alignUp(off, 8)
	strtabOff := symtabOff + uint64(syms.Len())
	shstrtabOff := strtabOff + uint64(len(str.data))
	shoff := alignUp(shstrtabOff+uint64(len(shstr.data)), 8)
	shnum := len(e.Sections) + 4
	symtabIdx := len(e.Sections) + 1

	out := make([]byte, shoff+uint64(shnum*shentsize))
	for _, s := range e.Sections {
		if s.Type != elf.SHT_NOBITS {
			copy(out[offs[s.Name]:], s.Data)
		}
	}
	copy(out[symtabOff:], syms.Bytes())
	copy(out[strtabOff:], str.data)
	copy(out[shstrtabOff:], shstr.data)

	var hdr bytes.Buffer
	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F', byte(class), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)}
	if order == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	}
	phoff := uint64(0)
	if len(e.Segments) != 0 {
		phoff = uint64(ehsize)
	}
	if is64 {
		binary.Write(&hdr, order, elf.Header64{
			Ident: ident, Type: uint16(typ), Machine: uint16(machine),
			Version: uint32(elf.EV_CURRENT), Phoff: phoff, Shoff: shoff,
			Ehsize: uint16(ehsize), Phentsize: uint16(phentsize),
			Phnum: uint16(len(e.Segments)), Shentsize: uint16(shentsize),
			Shnum: uint16(shnum), Shstrndx: uint16(shnum - 1),
		})
	} else {
		binary.Write(&hdr, order, elf.Header32{
			Ident: ident, Type: uint16(typ), Machine: uint16(machine),
			Version: uint32(elf.EV_CURRENT), Phoff: uint32(phoff),
			Shoff: uint32(shoff), Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(len(e.Segments)),
			Shentsize: uint16(shentsize), Shnum: uint16(shnum),
			Shstrndx: uint16(shnum - 1),
		})
	}
	for _, sg := range e.Segments {
		first := &e.Sections[index[sg.Sections[0]]-1]
		var filesz, memsz uint64
		for _, name := range sg.Sections {
			s := &e.Sections[index[name]-1]
			if s.Type != elf.SHT_NOBITS {
				filesz = max(filesz, offs[name]+s.size()-offs[first.Name])
			}
			memsz = max(memsz, s.Addr+s.size()-first.Addr)
		}
		align := sg.Align
		if align == 0 {
			align = 4
		}
		if is64 {
			binary.Write(&hdr, order, elf.Prog64{
				Type: uint32(elf.PT_LOAD), Flags: uint32(sg.Flags),
				Off: offs[first.Name], Vaddr: first.Addr, Paddr: first.Addr,
				Filesz: filesz, Memsz: memsz, Align: align,
			})
		} else {
			binary.Write(&hdr, order, elf.Prog32{
				Type: uint32(elf.PT_LOAD), Off: uint32(offs[first.Name]),
				Vaddr: uint32(first.Addr), Paddr: uint32(first.Addr),
				Filesz: uint32(filesz), Memsz: uint32(memsz),
				Flags: uint32(sg.Flags), Align: uint32(align),
			})
		}
	}
	copy(out, hdr.Bytes())

	type shdr struct {
		name          uint32
		typ           elf.SectionType
		flags         elf.SectionFlag
		addr, off, sz uint64
		link, info    uint32
		align, entsz  uint64
	}
	shdrs := make([]shdr, 0, shnum)
	shdrs = append(shdrs, shdr{})
	for i, s := range e.Sections {
		shdrs = append(shdrs, shdr{
			name: names[i], typ: s.Type, flags: s.Flags, addr: s.Addr,
			off: offs[s.Name], sz: s.size(), align: 4,
		})
	}
	shdrs = append(shdrs,
		shdr{
			name: symtabName, typ: elf.SHT_SYMTAB, off: symtabOff,
			sz: uint64(syms.Len()), link: uint32(symtabIdx + 1), info: 1,
			align: 4, entsz: uint64(symentsize),
		},
		shdr{
			name: strtabName, typ: elf.SHT_STRTAB, off: strtabOff,
			sz: uint64(len(str.data)), align: 1,
		},
		shdr{
			name: shstrtabName, typ: elf.SHT_STRTAB, off: shstrtabOff,
			sz: uint64(len(shstr.data)), align: 1,
		},
	)
	var sh bytes.Buffer
	for _, h := range shdrs {
		if is64 {
			binary.Write(&sh, order, elf.Section64{
				Name: h.name, Type: uint32(h.typ), Flags: uint64(h.flags),
				Addr: h.addr, Off: h.off, Size: h.sz, Link: h.link,
				Info: h.info, Addralign: h.align, Entsize: h.entsz,
			})
		} else {
			binary.Write(&sh, order, elf.Section32{
				Name: h.name, Type: uint32(h.typ), Flags: uint32(h.flags),
				Addr: uint32(h.addr), Off: uint32(h.off), Size: uint32(h.sz),
				Link: h.link, Info: h.info, Addralign: uint32(h.align),
				Entsize: uint32(h.entsz),
			})
		}
	}
	copy(out[shoff:], sh.Bytes())
	return out
}
