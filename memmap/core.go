// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"strconv"
	"strings"

	"github.com/embeddedgo/targetgen/pdsc"
)

type coreType struct {
	name  string
	width int
}

var (
	armv6m  = coreType{"armv6m", 32}
	armv7m  = coreType{"armv7m", 32}
	armv7em = coreType{"armv7em", 32}
	armv8m  = coreType{"armv8m", 32}
	armv7a  = coreType{"armv7a", 32}
	armv8a  = coreType{"armv8a", 64}
	riscv   = coreType{"riscv", 32}
)

var coreTypes = map[string]coreType{
	"Cortex-M0":   armv6m,
	"Cortex-M0+":  armv6m,
	"Cortex-M1":   armv6m,
	"SC000":       armv6m,
	"Cortex-M3":   armv7m,
	"SC300":       armv7m,
	"Cortex-M4":   armv7em,
	"Cortex-M7":   armv7em,
	"Cortex-M23":  armv8m,
	"Cortex-M33":  armv8m,
	"Cortex-M35P": armv8m,
	"Cortex-M52":  armv8m,
	"Cortex-M55":  armv8m,
	"Cortex-M85":  armv8m,
	"Star-MC1":    armv8m,
	"ARMV8MBL":    armv8m,
	"ARMV8MML":    armv8m,
	"ARMV81MML":   armv8m,
	"Cortex-A5":   armv7a,
	"Cortex-A7":   armv7a,
	"Cortex-A9":   armv7a,
	"Cortex-A35":  armv8a,
	"Cortex-A53":  armv8a,
	"Cortex-A55":  armv8a,
	"Cortex-A57":  armv8a,
	"Cortex-A72":  armv8a,
	"RISC-V":      riscv,
	"RV32":        riscv,
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// resolveCores selects the processor declarations for the variant on the
// given path. The deepest node that declares a core (Dcore) wins. Attribute
// only declarations (no Dcore) complete the cores with the same Pname:
// those above the winner fill unset attributes, those below it override.
func resolveCores(variant string, t *pdsc.Tree, path []int) ([]Core, error) {
	win := -1
	for d := len(path) - 1; d >= 0 && win < 0; d-- {
		for _, p := range t.Node(path[d]).Processors {
			if p.Dcore != nil {
				win = d
				break
			}
		}
	}
	if win < 0 {
		return nil, &NoCoreError{variant}
	}
	var procs []pdsc.Processor
	for _, p := range t.Node(path[win]).Processors {
		if p.Dcore != nil {
			procs = append(procs, *p)
		}
	}
	merge := func(p *pdsc.Processor, override bool) {
		for i := range procs {
			q := &procs[i]
			if p.Pname != nil && str(q.Pname) != *p.Pname {
				continue
			}
			if p.Pname == nil && len(procs) > 1 {
				continue
			}
			set := func(dst **string, src *string) {
				if src != nil && (override || *dst == nil) {
					*dst = src
				}
			}
			set(&q.DcoreVersion, p.DcoreVersion)
			set(&q.Dfpu, p.Dfpu)
			set(&q.Dmpu, p.Dmpu)
			set(&q.Dtz, p.Dtz)
			set(&q.Ddsp, p.Ddsp)
			set(&q.Dendian, p.Dendian)
			if p.Dclock != nil && (override || q.Dclock == nil) {
				q.Dclock = p.Dclock
			}
		}
	}
	for d, n := range path {
		for _, p := range t.Node(n).Processors {
			if p.Dcore == nil {
				merge(p, d > win)
			}
		}
	}

	cores := make([]Core, len(procs))
	unnamed := 0
	for i, p := range procs {
		ct, ok := coreTypes[strings.TrimSpace(*p.Dcore)]
		if !ok {
			return nil, &UnknownCoreError{variant, *p.Dcore}
		}
		name := str(p.Pname)
		if name == "" {
			if unnamed == 0 {
				name = "main"
			} else {
				name = "core" + strconv.Itoa(unnamed)
			}
			unnamed++
		}
		c := Core{
			Name:         name,
			Type:         ct.name,
			AddressWidth: ct.width,
			Processor:    *p.Dcore,
			FPU:          str(p.Dfpu),
			MPU:          str(p.Dmpu),
			TrustZone:    str(p.Dtz),
			DSP:          str(p.Ddsp),
			Endian:       str(p.Dendian),
		}
		if p.Dclock != nil {
			c.Clock = uint64(*p.Dclock)
		}
		cores[i] = c
	}
	return cores, nil
}
