// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/targetgen/internal/testutil"
	"github.com/embeddedgo/targetgen/pdsc"
)

func parse(t *testing.T, families string) *pdsc.Tree {
	t.Helper()
	doc := `<package><vendor>V</vendor><name>P</name><devices>` +
		families + `</devices></package>`
	tree, err := pdsc.Parse([]byte(doc))
	require.NoError(t, err)
	return tree
}

func leaf(t *testing.T, tree *pdsc.Tree, name string) int {
	t.Helper()
	for _, l := range tree.Leaves() {
		if tree.Node(l).Name == name {
			return l
		}
	}
	t.Fatalf("no leaf %s", name)
	return -1
}

func resolve(t *testing.T, tree *pdsc.Tree, name string) *Variant {
	t.Helper()
	v, err := Resolve(tree, leaf(t, tree, name))
	require.NoError(t, err)
	return v
}

type span struct {
	Name        string
	Start, Size uint64
}

func spans(rs []Region) []span {
	s := make([]span, len(rs))
	for i, r := range rs {
		s[i] = span{r.Name, r.Start, r.Size}
	}
	return s
}

func TestResolveSample(t *testing.T) {
	tree, err := pdsc.Parse([]byte(testutil.SamplePDSC))
	require.NoError(t, err)

	v := resolve(t, tree, "ACME-M4-A")
	assert.Equal(t, "ACME-M4-A", v.ID())
	assert.Equal(t, "ACME.ACME_DFP.1.2.0", v.Pack)
	assert.Equal(t, "ACME Corp", v.Vendor)
	assert.Equal(t, "ACME Series", v.Family)
	assert.Equal(t, "ACME-M4", v.Device)
	assert.Empty(t, v.SubFamily)
	assert.Equal(t, []Core{{
		Name: "main", Type: "armv7em", AddressWidth: 32,
		Processor: "Cortex-M4", FPU: "SP_FPU", Endian: "Little-endian",
		Clock: 80000000,
	}}, v.Cores)

	assert.Equal(t, []Region{
		{
			Kind: Flash, Name: "IROM1", Start: 0x08000000, Size: 0x10000,
			Access: Access{Read: true, Execute: true}, Default: true,
			Startup: true, Algorithm: "ACME_64",
		},
		{
			Kind: RAM, Name: "SRAM", Start: 0x20000000, Size: 0x8000,
			Access: Access{Read: true, Write: true, Execute: true},
		},
	}, v.Regions)

	require.Len(t, v.Algorithms, 1)
	a := v.Algorithms[0]
	assert.Equal(t, "ACME_64", a.Name)
	assert.Equal(t, "Flash/ACME_64.FLM", a.Path)
	assert.True(t, a.Default)
	require.NotNil(t, a.RAMStart)
	assert.EqualValues(t, 0x20000000, *a.RAMStart)
	assert.EqualValues(t, 0x1000, *a.RAMSize)

	b := resolve(t, tree, "ACME-M4-B")
	assert.Equal(t, v.Regions, b.Regions)
	assert.Equal(t, v.Algorithms, b.Algorithms)

	m0 := resolve(t, tree, "ACME-M0")
	require.Len(t, m0.Cores, 1)
	assert.Equal(t, "armv6m", m0.Cores[0].Type)
	assert.Zero(t, m0.Cores[0].Clock)
	assert.Nil(t, m0.Algorithms[0].RAMStart)
	r, ok := m0.RAMFor("")
	require.True(t, ok)
	assert.Equal(t, "SRAM", r.Name)
}

func TestResolveIsIdempotent(t *testing.T) {
	tree, err := pdsc.Parse([]byte(testutil.SamplePDSC))
	require.NoError(t, err)
	for _, l := range tree.Leaves() {
		a, err := Resolve(tree, l)
		require.NoError(t, err)
		b, err := Resolve(tree, l)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestResolveCopiesTree(t *testing.T) {
	tree, err := pdsc.Parse([]byte(testutil.SamplePDSC))
	require.NoError(t, err)
	v := resolve(t, tree, "ACME-M4-A")
	*v.Algorithms[0].RAMStart = 0
	w := resolve(t, tree, "ACME-M4-A")
	assert.EqualValues(t, 0x20000000, *w.Algorithms[0].RAMStart)
}

func TestRegionOverlap(t *testing.T) {
	tests := []struct {
		name     string
		families string
		want     []span
	}{
		{
			name: "deeper truncates shallower",
			families: `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <memory name="A" access="rx" start="0" size="0x1000"/>
  <device Dname="D"><memory name="B" access="rx" start="0x800" size="0x1000"/></device>
</family>`,
			want: []span{{"A", 0, 0x800}, {"B", 0x800, 0x1000}},
		},
		{
			name: "deeper splits shallower",
			families: `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <memory name="A" access="rw" start="0x20000000" size="0x3000"/>
  <device Dname="D"><memory name="B" access="rwp" start="0x20001000" size="0x1000"/></device>
</family>`,
			want: []span{
				{"A", 0x20000000, 0x1000},
				{"B", 0x20001000, 0x1000},
				{"A", 0x20002000, 0x1000},
			},
		},
		{
			name: "deeper hides shallower",
			families: `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <memory name="A" access="rx" start="0x100" size="0x100"/>
  <device Dname="D"><memory name="B" access="rx" start="0" size="0x1000"/></device>
</family>`,
			want: []span{{"B", 0, 0x1000}},
		},
		{
			name: "three levels",
			families: `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <memory name="A" access="rx" start="0" size="0x4000"/>
  <device Dname="D"><memory name="B" access="rx" start="0x1000" size="0x2000"/>
    <variant Dvariant="V"><memory name="C" access="rx" start="0x1800" size="0x1000"/></variant>
  </device>
</family>`,
			want: []span{
				{"A", 0, 0x1000},
				{"B", 0x1000, 0x800},
				{"C", 0x1800, 0x1000},
				{"B", 0x2800, 0x800},
				{"A", 0x3000, 0x1000},
			},
		},
		{
			name: "same name overrides",
			families: `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <memory id="IRAM1" start="0x20000000" size="0x10000"/>
  <device Dname="D"><memory id="IRAM1" start="0x20000000" size="0x4000"/></device>
</family>`,
			want: []span{{"IRAM1", 0x20000000, 0x4000}},
		},
		{
			name: "exact duplicates are dropped",
			families: `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <device Dname="D">
    <memory id="IROM1" start="0" size="0x1000"/>
    <memory id="IROM1" start="0" size="0x1000"/>
    <memory name="empty" access="r" start="0x5000" size="0"/>
  </device>
</family>`,
			want: []span{{"IROM1", 0, 0x1000}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.families)
			leaves := tree.Leaves()
			require.Len(t, leaves, 1)
			v, err := Resolve(tree, leaves[0])
			require.NoError(t, err)
			assert.Equal(t, tt.want, spans(v.Regions))
		})
	}
}

func TestRegionOverlapAtSameDepth(t *testing.T) {
	tree := parse(t, `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <device Dname="D">
    <memory name="A" access="rx" start="0" size="0x1000"/>
    <memory name="B" access="rx" start="0xc00" size="0x1000"/>
  </device>
</family>`)
	_, err := Resolve(tree, tree.Leaves()[0])
	var oe *OverlapError
	require.True(t, errors.As(err, &oe), "got %v", err)
	assert.Equal(t, "A", oe.A.Name)
	assert.Equal(t, "B", oe.B.Name)
	assert.Equal(t, "D", oe.Variant)
	assert.True(t, errors.Is(err, ErrResolution))
}

func TestDuplicateRegionUnderOtherName(t *testing.T) {
	tree := parse(t, `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <memory id="IRAM1" start="0x20000000" size="0x1000"/>
  <memory name="SRAM" access="rwx" start="0x20000000" size="0x1000"/>
  <device Dname="D"/>
</family>`)
	v := resolve(t, tree, "D")
	require.Len(t, v.Regions, 1)
	assert.Equal(t, "IRAM1", v.Regions[0].Name)
	assert.Equal(t, RAM, v.Regions[0].Kind)
	assert.EqualValues(t, 0x20000000, v.Regions[0].Start)
}

func TestRegionKinds(t *testing.T) {
	tree := parse(t, `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <device Dname="D">
    <memory id="IROM1" start="0x0" size="0x100"/>
    <memory id="IRAM1" start="0x100" size="0x100"/>
    <memory name="Periph" access="rwp" start="0x200" size="0x100"/>
    <memory name="Boot" access="r" start="0x300" size="0x100"/>
    <memory name="QSPI" access="rx" start="0x400" size="0x100" Pname="cm4"/>
    <memory name="TCM" access="rwxs" start="0x500" size="0x100"/>
  </device>
</family>`)
	v := resolve(t, tree, "D")
	kinds := make(map[string]Kind)
	for _, r := range v.Regions {
		kinds[r.Name] = r.Kind
	}
	assert.Equal(t, map[string]Kind{
		"IROM1": Flash, "IRAM1": RAM, "Periph": Device,
		"Boot": ROM, "QSPI": Flash, "TCM": RAM,
	}, kinds)
	r, ok := v.Region("IRAM1")
	require.True(t, ok)
	assert.Equal(t, "rwx", r.Access.String())
	r, _ = v.Region("TCM")
	assert.True(t, r.Access.Secure)
	r, _ = v.Region("QSPI")
	assert.Equal(t, []string{"cm4"}, r.Cores)
}

func TestBadMemory(t *testing.T) {
	tree := parse(t, `<family Dfamily="F"><processor Dcore="Cortex-M3"/>
  <device Dname="D"><memory name="X" access="rq" start="0" size="0x100"/></device>
</family>`)
	_, err := Resolve(tree, tree.Leaves()[0])
	var be *BadMemoryError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, "X", be.Name)
}

func TestCores(t *testing.T) {
	t.Run("deepest wins", func(t *testing.T) {
		tree := parse(t, `<family Dfamily="F"><processor Dcore="Cortex-M4" Dclock="1000"/>
  <device Dname="D"><processor Dcore="Cortex-M33" Dtz="TZ"/></device>
</family>`)
		v := resolve(t, tree, "D")
		assert.Equal(t, []Core{{
			Name: "main", Type: "armv8m", AddressWidth: 32,
			Processor: "Cortex-M33", TrustZone: "TZ",
		}}, v.Cores)
	})
	t.Run("attribute only declarations", func(t *testing.T) {
		tree := parse(t, `<family Dfamily="F">
  <processor Dclock="1000" Dfpu="NO_FPU"/>
  <processor Dcore="Cortex-M7" Dfpu="DP_FPU"/>
  <device Dname="D"><processor Dclock="2000"/></device>
  <device Dname="E"/>
</family>`)
		v := resolve(t, tree, "D")
		require.Len(t, v.Cores, 1)
		assert.EqualValues(t, 2000, v.Cores[0].Clock)
		assert.Equal(t, "DP_FPU", v.Cores[0].FPU)
		e := resolve(t, tree, "E")
		assert.EqualValues(t, 1000, e.Cores[0].Clock)
	})
	t.Run("multi core", func(t *testing.T) {
		tree := parse(t, `<family Dfamily="F">
  <processor Pname="cm7" Dcore="Cortex-M7"/>
  <processor Pname="cm4" Dcore="Cortex-M4"/>
  <processor Dcore="Cortex-A53"/>
  <device Dname="D"><processor Pname="cm4" Dclock="240000000"/></device>
</family>`)
		v := resolve(t, tree, "D")
		require.Len(t, v.Cores, 3)
		assert.Equal(t, "cm7", v.Cores[0].Name)
		assert.Zero(t, v.Cores[0].Clock)
		assert.Equal(t, "cm4", v.Cores[1].Name)
		assert.EqualValues(t, 240000000, v.Cores[1].Clock)
		assert.Equal(t, "main", v.Cores[2].Name)
		assert.Equal(t, 64, v.Cores[2].AddressWidth)
	})
	t.Run("no core", func(t *testing.T) {
		tree := parse(t, `<family Dfamily="F"><processor Dclock="1"/><device Dname="D"/></family>`)
		_, err := Resolve(tree, tree.Leaves()[0])
		var nc *NoCoreError
		require.True(t, errors.As(err, &nc), "got %v", err)
		assert.Equal(t, "D", nc.Variant)
		assert.True(t, errors.Is(err, ErrResolution))
	})
	t.Run("unknown core", func(t *testing.T) {
		tree := parse(t, `<family Dfamily="F"><processor Dcore="Z80"/><device Dname="D"/></family>`)
		_, err := Resolve(tree, tree.Leaves()[0])
		var uc *UnknownCoreError
		require.True(t, errors.As(err, &uc), "got %v", err)
		assert.Equal(t, "Z80", uc.Core)
	})
}

func TestAlgorithms(t *testing.T) {
	tree := parse(t, `<family Dfamily="F"><processor Dcore="Cortex-M4"/>
  <algorithm name="Flash\Bank.FLM" start="0x08000000" size="0x100000"/>
  <device Dname="D">
    <memory name="Bank1" access="rx" start="0x08000000" size="0x80000"/>
    <memory name="Bank2" access="rx" start="0x08080000" size="0x80000"/>
    <memory name="OTP" access="rx" start="0x1fff0000" size="0x400"/>
    <memory name="RAM" access="rwx" start="0x20000000" size="0x20000"/>
    <algorithm name="Flash/Bank1.FLM" start="0x08000000" size="0x80000" default="1"/>
    <algorithm name="Alt/Bank1.FLM" start="0x08000000" size="0x80000"/>
  </device>
</family>`)
	v := resolve(t, tree, "D")

	names := make([]string, len(v.Algorithms))
	for i, a := range v.Algorithms {
		names[i] = a.Name
	}
	assert.Equal(t, []string{"Bank1", "Bank1_2", "Bank"}, names)
	a, ok := v.Algorithm("Bank")
	require.True(t, ok)
	assert.Equal(t, `Flash\Bank.FLM`, a.Path)

	attached := make(map[string]string)
	for _, r := range v.Regions {
		attached[r.Name] = r.Algorithm
	}
	assert.Equal(t, map[string]string{
		"Bank1": "Bank1", "Bank2": "Bank", "OTP": "", "RAM": "",
	}, attached)

	// An explicit region wins over the address match.
	ref, _ := v.Algorithm("Bank1_2")
	ref.Region = "Bank1"
	ref, _ = v.Algorithm("Bank")
	ref.Region = "OTP"
	v.AttachAlgorithms()
	r, _ := v.Region("Bank1")
	assert.Equal(t, "Bank1_2", r.Algorithm)
	r, _ = v.Region("OTP")
	assert.Equal(t, "Bank", r.Algorithm)
	r, _ = v.Region("Bank2")
	assert.Empty(t, r.Algorithm)
}

func TestResolveAll(t *testing.T) {
	tree := parse(t, `<family Dfamily="F">
  <device Dname="A"><processor Dcore="Cortex-M0"/></device>
  <device Dname="B"/>
  <device Dname="C"><processor Dcore="Cortex-M3"/></device>
</family>`)
	vs, err := ResolveAll(tree)
	require.Len(t, vs, 2)
	assert.Equal(t, "A", vs[0].Name)
	assert.Equal(t, "C", vs[1].Name)
	var nc *NoCoreError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, "B", nc.Variant)
}

func TestAccess(t *testing.T) {
	a, err := ParseAccess("rwxpsnc")
	require.NoError(t, err)
	assert.Equal(t, "rwxpsnc", a.String())
	a, err = ParseAccess("xr")
	require.NoError(t, err)
	assert.Equal(t, "rx", a.String())
	_, err = ParseAccess("rz")
	assert.Error(t, err)

	k, err := ParseKind("flash")
	require.NoError(t, err)
	assert.Equal(t, Flash, k)
	assert.Equal(t, "device", Device.String())
}
