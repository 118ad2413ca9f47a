// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flashalgo

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/targetgen/internal/testutil"
)

func TestParseFLM(t *testing.T) {
	flm := testutil.NewFLM()
	im, err := Parse(flm.Bytes(), Options{})
	require.NoError(t, err)

	assert.EqualValues(t, 0, im.Base)
	require.Len(t, im.Blob, 0xb0)
	assert.Equal(t, flm.Code, im.Blob[:0x80])
	assert.Equal(t, flm.Data, im.Blob[0x80:0x90])
	assert.Equal(t, make([]byte, 0x20), im.Blob[0x90:])
	assert.EqualValues(t, 0x80, im.DataOffset)
	assert.Equal(t, elf.EM_ARM, im.Machine)
	assert.Equal(t, 32, im.AddressWidth)
	assert.False(t, im.BigEndian)

	assert.Equal(t, Entries{
		Init:        Entry{0x01, true},
		UnInit:      Entry{0x11, true},
		EraseChip:   Entry{0x21, true},
		EraseSector: Entry{0x31, true},
		ProgramPage: Entry{0x41, true},
		Verify:      Entry{0x51, true},
	}, im.Entries)

	require.NotNil(t, im.Device)
	assert.Equal(t, "ACME 64kB Flash", im.Device.Name)
	assert.Equal(t, OnChip, im.Device.Type)
	assert.EqualValues(t, 0x0101, im.Device.Version)
	assert.EqualValues(t, 0x08000000, im.Device.Addr)
	assert.EqualValues(t, 0x10000, im.Device.Size)
	assert.EqualValues(t, 0x400, im.Device.PageSize)
	assert.EqualValues(t, 0xff, im.Device.ErasedValue)
	assert.EqualValues(t, 100, im.Device.ProgramTimeout)
	assert.EqualValues(t, 3000, im.Device.EraseTimeout)
	assert.Equal(t, []Sector{{Size: 0x1000, Offset: 0}}, im.Device.Sectors)
}

func TestParseIsPure(t *testing.T) {
	data := testutil.NewFLM().Bytes()
	a, err := Parse(data, Options{})
	require.NoError(t, err)
	b, err := Parse(data, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Blob, b.Blob)
	assert.Equal(t, a.Entries, b.Entries)
	assert.Equal(t, a, b)
}

func TestParseClassesAndByteOrders(t *testing.T) {
	ref, err := Parse(testutil.NewFLM().Bytes(), Options{})
	require.NoError(t, err)
	tests := []struct {
		name  string
		class elf.Class
		order binary.ByteOrder
	}{
		{"elf32 big-endian", elf.ELFCLASS32, binary.BigEndian},
		{"elf64 little-endian", elf.ELFCLASS64, binary.LittleEndian},
		{"elf64 big-endian", elf.ELFCLASS64, binary.BigEndian},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flm := testutil.NewFLM()
			flm.Class = tt.class
			flm.Order = tt.order
			im, err := Parse(flm.Bytes(), Options{})
			require.NoError(t, err)
			assert.Equal(t, ref.Blob, im.Blob)
			assert.Equal(t, ref.Entries, im.Entries)
			assert.Equal(t, ref.Device, im.Device)
			assert.Equal(t, tt.order == binary.BigEndian, im.BigEndian)
			if tt.class == elf.ELFCLASS64 {
				assert.Equal(t, 64, im.AddressWidth)
			}
		})
	}
}

func TestParseMissingSymbols(t *testing.T) {
	for _, name := range []string{"Init", "UnInit", "EraseSector", "ProgramPage"} {
		t.Run(name, func(t *testing.T) {
			flm := testutil.NewFLM()
			flm.Omit = []string{name}
			_, err := Parse(flm.Bytes(), Options{})
			var ms *MissingSymbolError
			require.True(t, errors.As(err, &ms), "got %v", err)
			assert.Equal(t, name, ms.Name)
			assert.True(t, errors.Is(err, ErrAlgorithm))
		})
	}

	flm := testutil.NewFLM()
	flm.Omit = []string{"EraseChip", "Verify"}
	im, err := Parse(flm.Bytes(), Options{})
	require.NoError(t, err)
	assert.False(t, im.Entries.EraseChip.Present)
	assert.False(t, im.Entries.Verify.Present)
	assert.True(t, im.Entries.ProgramPage.Present)
}

func TestParseSymbolOutsideBlob(t *testing.T) {
	flm := testutil.NewFLM()
	flm.Entries = map[string]uint64{
		"Init": 0x01, "UnInit": 0x11, "EraseSector": 0x31,
		"ProgramPage": 0x1001,
	}
	_, err := Parse(flm.Bytes(), Options{})
	var ul *UnsupportedLayoutError
	require.True(t, errors.As(err, &ul), "got %v", err)
	assert.Contains(t, ul.Reason, "ProgramPage")
}

func TestParseNotELF(t *testing.T) {
	_, err := Parse([]byte("\x7fELF but not really"), Options{})
	var ul *UnsupportedLayoutError
	assert.True(t, errors.As(err, &ul))
	assert.True(t, errors.Is(err, ErrAlgorithm))
}

func code(n int, b byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = b
	}
	return p
}

func entrySymbols(section string, base uint64) []testutil.Symbol {
	var syms []testutil.Symbol
	for _, name := range []string{"Init", "UnInit", "EraseSector", "ProgramPage"} {
		syms = append(syms, testutil.Symbol{
			Name: name, Value: base + testutil.DefaultEntries[name],
			Type: elf.STT_FUNC, Section: section,
		})
	}
	return syms
}

func twoCodeSegments(sizeA, addrA, sizeB, addrB uint64) []byte {
	e := &testutil.ELF{
		Sections: []testutil.Section{
			{Name: "CodeA", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: addrA, Data: code(int(sizeA), 0xaa)},
			{Name: "CodeB", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: addrB, Data: code(int(sizeB), 0xbb)},
		},
		Segments: []testutil.Segment{
			{Flags: elf.PF_R | elf.PF_X, Sections: []string{"CodeA"}},
			{Flags: elf.PF_R | elf.PF_X, Sections: []string{"CodeB"}},
		},
	}
	largest := "CodeA"
	base := addrA
	if sizeB > sizeA || (sizeB == sizeA && addrB < addrA) {
		largest, base = "CodeB", addrB
	}
	e.Symbols = entrySymbols(largest, base)
	return e.Bytes()
}

func TestPrimarySegment(t *testing.T) {
	t.Run("largest wins", func(t *testing.T) {
		im, err := Parse(twoCodeSegments(0x40, 0, 0x80, 0x100), Options{})
		require.NoError(t, err)
		assert.EqualValues(t, 0x100, im.Base)
		assert.Equal(t, code(0x80, 0xbb), im.Blob)
	})
	t.Run("tie broken by lowest address", func(t *testing.T) {
		im, err := Parse(twoCodeSegments(0x80, 0x200, 0x80, 0x100), Options{})
		require.NoError(t, err)
		assert.EqualValues(t, 0x100, im.Base)
	})
	t.Run("same size and address", func(t *testing.T) {
		_, err := Parse(twoCodeSegments(0x80, 0x100, 0x80, 0x100), Options{})
		var av *AmbiguousVariantError
		require.True(t, errors.As(err, &av), "got %v", err)
		assert.Len(t, av.Segments, 2)
	})
	t.Run("strict", func(t *testing.T) {
		_, err := Parse(twoCodeSegments(0x40, 0, 0x80, 0x100), Options{SegmentPolicy: Strict})
		var av *AmbiguousVariantError
		require.True(t, errors.As(err, &av), "got %v", err)
		assert.True(t, errors.Is(err, ErrAlgorithm))
	})
}

func TestNoCodeSegment(t *testing.T) {
	e := &testutil.ELF{
		Sections: []testutil.Section{
			{Name: "PrgData", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Data: code(16, 1)},
		},
		Segments: []testutil.Segment{{Flags: elf.PF_R | elf.PF_W, Sections: []string{"PrgData"}}},
	}
	_, err := Parse(e.Bytes(), Options{})
	var ul *UnsupportedLayoutError
	require.True(t, errors.As(err, &ul), "got %v", err)
}

func TestDistantDataIsNotAppended(t *testing.T) {
	e := &testutil.ELF{
		Sections: []testutil.Section{
			{Name: "PrgCode", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Data: code(0x5e, 0xcc)},
			{Name: "Near", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: 0x60, Data: code(6, 0xdd)},
			{Name: "Far", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: 0x1000, Data: code(8, 0xee)},
		},
		Segments: []testutil.Segment{
			{Flags: elf.PF_R | elf.PF_X, Sections: []string{"PrgCode"}},
			{Flags: elf.PF_R | elf.PF_W, Sections: []string{"Near"}, Align: 4},
			{Flags: elf.PF_R | elf.PF_W, Sections: []string{"Far"}, Align: 4},
		},
		Symbols: entrySymbols("PrgCode", 0),
	}
	im, err := Parse(e.Bytes(), Options{})
	require.NoError(t, err)
	want := append(code(0x5e, 0xcc), 0, 0)
	want = append(want, code(6, 0xdd)...)
	assert.Equal(t, want, im.Blob)
	assert.EqualValues(t, 0x60, im.DataOffset)
	assert.Nil(t, im.Device)
}

func TestSectionFallback(t *testing.T) {
	e := &testutil.ELF{
		Type: elf.ET_REL,
		Sections: []testutil.Section{
			{Name: "PrgCode", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Data: code(0x60, 0x11)},
			{Name: ".comment", Type: elf.SHT_PROGBITS, Data: []byte("compiler")},
		},
		Symbols: entrySymbols("PrgCode", 0),
	}
	im, err := Parse(e.Bytes(), Options{})
	require.NoError(t, err)
	assert.Equal(t, code(0x60, 0x11), im.Blob)
	assert.EqualValues(t, 0x41, im.Entries.ProgramPage.Offset)
}

func TestParseSegmentPolicy(t *testing.T) {
	p, err := ParseSegmentPolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)
	p, err = ParseSegmentPolicy("largest")
	require.NoError(t, err)
	assert.Equal(t, Largest, p)
	assert.Equal(t, "largest", p.String())
	_, err = ParseSegmentPolicy("smallest")
	assert.Error(t, err)
}

func TestBlobSizeLimit(t *testing.T) {
	tests := []struct {
		name  string
		class elf.Class
		bss   uint64
	}{
		{"huge ELF64 bss", elf.ELFCLASS64, 1 << 62},
		{"ELF32 bss above limit", elf.ELFCLASS32, MaxBlobSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flm := testutil.NewFLM()
			flm.Class = tt.class
			flm.BSS = tt.bss
			var err error
			require.NotPanics(t, func() { _, err = Parse(flm.Bytes(), Options{}) })
			var ul *UnsupportedLayoutError
			require.True(t, errors.As(err, &ul), "got %v", err)
			assert.Contains(t, err.Error(), "exceeds")
		})
	}

	e := &testutil.ELF{
		Class: elf.ELFCLASS64,
		Sections: []testutil.Section{
			{Name: "PrgCode", Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Size: 1 << 40},
		},
		Segments: []testutil.Segment{{Flags: elf.PF_R | elf.PF_X, Sections: []string{"PrgCode"}}},
		Symbols:  entrySymbols("PrgCode", 0),
	}
	var err error
	require.NotPanics(t, func() { _, err = Parse(e.Bytes(), Options{}) })
	assert.True(t, errors.Is(err, ErrAlgorithm), "got %v", err)
}

// deviceInData returns an image whose only data segment holds PrgData and
// DevDscr in the given order.
func deviceInData(deviceFirst bool) (*testutil.ELF, []byte, []byte) {
	data := code(0x10, 0xd0)
	dev := testutil.DefaultDevice().Bytes(binary.LittleEndian)
	prgData := testutil.Section{Name: "PrgData", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Data: data}
	devDscr := testutil.Section{Name: "DevDscr", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC, Data: dev}
	first, second := &prgData, &devDscr
	if deviceFirst {
		first, second = second, first
	}
	first.Addr = 0x80
	second.Addr = 0x80 + uint64(len(first.Data))
	e := &testutil.ELF{
		Sections: []testutil.Section{
			{Name: "PrgCode", Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Data: code(0x80, 0xcc)},
			*first, *second,
		},
		Segments: []testutil.Segment{
			{Flags: elf.PF_R | elf.PF_X, Sections: []string{"PrgCode"}},
			{Flags: elf.PF_R | elf.PF_W, Sections: []string{first.Name, second.Name}},
		},
		Symbols: append(entrySymbols("PrgCode", 0), testutil.Symbol{
			Name: FlashDeviceSymbol, Value: devDscr.Addr, Size: uint64(len(dev)),
			Type: elf.STT_OBJECT, Section: "DevDscr",
		}),
	}
	return e, data, dev
}

func TestDeviceSharesDataSegment(t *testing.T) {
	t.Run("device after data", func(t *testing.T) {
		e, data, _ := deviceInData(false)
		im, err := Parse(e.Bytes(), Options{})
		require.NoError(t, err)
		require.NotNil(t, im.Device)
		assert.Equal(t, "ACME 64kB Flash", im.Device.Name)
		assert.Equal(t, append(code(0x80, 0xcc), data...), im.Blob)
		assert.EqualValues(t, 0x80, im.DataOffset)
	})
	t.Run("device before data", func(t *testing.T) {
		e, data, dev := deviceInData(true)
		im, err := Parse(e.Bytes(), Options{})
		require.NoError(t, err)
		require.NotNil(t, im.Device)
		want := append(code(0x80, 0xcc), make([]byte, len(dev))...)
		want = append(want, data...)
		assert.Equal(t, want, im.Blob)
		assert.EqualValues(t, 0x80, im.DataOffset)
	})
}
