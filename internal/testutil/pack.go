// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"archive/zip"
	"bytes"
	"maps"
	"slices"
)

// Zip returns a zip archive holding files, stored in lexical order.
func Zip(files map[string][]byte) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range slices.Sorted(maps.Keys(files)) {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write(files[name]); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// SamplePDSC describes one family with two devices. ACME-M4 has two variants
// that inherit the device's 64 KiB flash and its algorithm. ACME-M0 uses an
// algorithm without ProgramPage.
const SamplePDSC = `<?xml version="1.0" encoding="UTF-8"?>
<package schemaVersion="1.7.2" xmlns:xs="http://www.w3.org/2001/XMLSchema-instance">
  <vendor>ACME</vendor>
  <name>ACME_DFP</name>
  <description>ACME device family pack</description>
  <releases>
    <release version="1.2.0">Second release</release>
    <release version="1.0.0">Initial release</release>
  </releases>
  <devices>
    <family Dfamily="ACME Series" Dvendor="ACME Corp:99">
      <processor Dcore="Cortex-M4" Dfpu="SP_FPU" Dendian="Little-endian" Dclock="80000000"/>
      <memory name="SRAM" access="rwx" start="0x20000000" size="0x8000"/>
      <device Dname="ACME-M4">
        <memory id="IROM1" start="0x08000000" size="0x10000" startup="1" default="1"/>
        <algorithm name="Flash/ACME_64.FLM" start="0x08000000" size="0x10000" RAMstart="0x20000000" RAMsize="0x1000" default="1"/>
        <variant Dvariant="ACME-M4-A"/>
        <variant Dvariant="ACME-M4-B"/>
      </device>
      <device Dname="ACME-M0">
        <processor Dcore="Cortex-M0+"/>
        <memory id="IROM1" start="0x08000000" size="0x8000" startup="1" default="1"/>
        <algorithm name="Flash/ACME_BROKEN.FLM" start="0x08000000" size="0x8000" default="1"/>
      </device>
    </family>
  </devices>
</package>
`

// SamplePack returns a pack built from SamplePDSC and matching algorithm
// images.
func SamplePack() []byte {
	broken := NewFLM()
	broken.Omit = []string{"ProgramPage"}
	return Zip(map[string][]byte{
		"ACME.ACME_DFP.pdsc":    []byte(SamplePDSC),
		"Flash/ACME_64.FLM":     NewFLM().Bytes(),
		"Flash/ACME_BROKEN.FLM": broken.Bytes(),
	})
}
