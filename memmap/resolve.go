// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memmap

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/embeddedgo/targetgen/pdsc"
)

// Resolve flattens the declarations on the path from the root of t to the
// leaf into a Variant.
func Resolve(t *pdsc.Tree, leaf int) (*Variant, error) {
	node := t.Node(leaf)
	if !node.Leaf {
		return nil, fmt.Errorf("memmap: node %s is not a variant", node.Location)
	}
	v := &Variant{Pack: t.PackID(), Name: node.Name}
	path := t.Path(leaf)
	for _, i := range path {
		n := t.Node(i)
		switch n.Kind {
		case pdsc.KindFamily:
			v.Family = n.Name
			v.Vendor = vendorName(n.Vendor)
		case pdsc.KindSubFamily:
			v.SubFamily = n.Name
		case pdsc.KindDevice:
			v.Device = n.Name
		}
		for _, d := range n.Debugs {
			if d.SVD != nil {
				v.SVD = *d.SVD
			}
		}
	}
	var err error
	if v.Cores, err = resolveCores(v.Name, t, path); err != nil {
		return nil, err
	}
	if v.Regions, err = resolveRegions(v.Name, t, path); err != nil {
		return nil, err
	}
	v.Algorithms = collectAlgorithms(t, path)
	v.AttachAlgorithms()
	return v, nil
}

// vendorName strips the numeric vendor ID from a Dvendor value such as
// "STMicroelectronics:13".
func vendorName(s string) string {
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

type decl struct {
	r     Region
	depth int
}

func newRegion(m *pdsc.Memory) (Region, error) {
	r := Region{
		Name:  m.MemoryName(),
		Start: uint64(*m.Start),
		Size:  uint64(*m.Size),
	}
	if r.End() < r.Start {
		return r, fmt.Errorf("range %#x+%#x overflows", r.Start, r.Size)
	}
	id := str(m.ID)
	iram := strings.HasPrefix(id, "IRAM")
	irom := strings.HasPrefix(id, "IROM")
	access := str(m.Access)
	if m.Access == nil {
		switch {
		case iram:
			access = "rwx"
		case irom:
			access = "rx"
		}
	}
	var err error
	if r.Access, err = ParseAccess(access); err != nil {
		return r, err
	}
	switch {
	case r.Access.Peripheral:
		r.Kind = Device
	case iram || r.Access.Write:
		r.Kind = RAM
	case irom || r.Access.Execute:
		r.Kind = Flash
	default:
		r.Kind = ROM
	}
	if m.Default != nil {
		r.Default = bool(*m.Default)
	}
	if m.Startup != nil {
		r.Startup = bool(*m.Startup)
	}
	if m.Pname != nil {
		r.Cores = []string{*m.Pname}
	}
	return r, nil
}

func sameRegion(a, b *Region) bool {
	return a.Kind == b.Kind && a.Start == b.Start && a.Size == b.Size &&
		a.Access == b.Access && a.Default == b.Default &&
		a.Startup == b.Startup && slices.Equal(a.Cores, b.Cores)
}

// declaredAt reports whether the same region, under any name, is already
// declared at the given depth.
func declaredAt(decls []decl, depth int, r *Region) bool {
	for i := range decls {
		if decls[i].depth == depth && sameRegion(&decls[i].r, r) {
			return true
		}
	}
	return false
}

// resolveRegions unions the memory declarations along the path. A deeper
// declaration replaces a shallower one of the same name. Then, level by
// level from the deepest one, every region is cut by the regions accepted
// from the deeper levels.
func resolveRegions(variant string, t *pdsc.Tree, path []int) ([]Region, error) {
	var decls []decl
	byName := make(map[string]int)
	for depth, n := range path {
		for _, m := range t.Node(n).Memories {
			r, err := newRegion(m)
			if err != nil {
				return nil, &BadMemoryError{variant, m.MemoryName(), err}
			}
			if r.Size == 0 || declaredAt(decls, depth, &r) {
				continue
			}
			if i, ok := byName[r.Name]; ok {
				old := &decls[i]
				if sameRegion(&old.r, &r) {
					continue
				}
				if old.depth < depth {
					*old = decl{r, depth}
					continue
				}
			}
			byName[r.Name] = len(decls)
			decls = append(decls, decl{r, depth})
		}
	}

	var accepted []Region
	for depth := len(path) - 1; depth >= 0; depth-- {
		var level []Region
		for _, d := range decls {
			if d.depth == depth {
				level = append(level, d.r)
			}
		}
		for i := range level {
			for j := i + 1; j < len(level); j++ {
				a, b := &level[i], &level[j]
				if a.overlaps(b.Start, b.End()) {
					return nil, &OverlapError{variant, *a, *b}
				}
			}
		}
		n := len(accepted)
		for _, r := range level {
			pieces := []Region{r}
			for _, a := range accepted[:n] {
				pieces = cut(pieces, a.Start, a.End())
			}
			accepted = append(accepted, pieces...)
		}
	}
	sort.Slice(accepted, func(i, j int) bool {
		a, b := &accepted[i], &accepted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Name < b.Name
	})
	return accepted, nil
}

// cut removes the range [start, end) from the regions.
func cut(rs []Region, start, end uint64) []Region {
	out := make([]Region, 0, len(rs)+1)
	for _, r := range rs {
		if !r.overlaps(start, end) {
			out = append(out, r)
			continue
		}
		if r.Start < start {
			left := r
			left.Size = start - r.Start
			out = append(out, left)
		}
		if end < r.End() {
			right := r
			right.Start = end
			right.Size = r.End() - end
			out = append(out, right)
		}
	}
	return out
}

// baseName returns the file name of an algorithm path without the
// extension. Both separators are accepted because packs are written on
// Windows.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i > 0 {
		p = p[:i]
	}
	return p
}

// collectAlgorithms returns the algorithm references declared along the
// path, deeper ones first. A path declared more than once is taken from the
// deepest declaration.
func collectAlgorithms(t *pdsc.Tree, path []int) []AlgorithmRef {
	var refs []AlgorithmRef
	seen := make(map[string]bool)
	names := make(map[string]bool)
	for d := len(path) - 1; d >= 0; d-- {
		for _, a := range t.Node(path[d]).Algorithms {
			if seen[a.Name] {
				continue
			}
			seen[a.Name] = true
			ref := AlgorithmRef{
				Path:  a.Name,
				Start: uint64(*a.Start),
				Size:  uint64(*a.Size),
				Core:  str(a.Pname),
				Style: str(a.Style),
			}
			if a.Default != nil {
				ref.Default = bool(*a.Default)
			}
			if a.RAMstart != nil {
				v := uint64(*a.RAMstart)
				ref.RAMStart = &v
			}
			if a.RAMsize != nil {
				v := uint64(*a.RAMsize)
				ref.RAMSize = &v
			}
			name := baseName(a.Name)
			for k := 2; names[name]; k++ {
				name = fmt.Sprintf("%s_%d", baseName(a.Name), k)
			}
			names[name] = true
			ref.Name = name
			refs = append(refs, ref)
		}
	}
	return refs
}

// AttachAlgorithms assigns an algorithm to every Flash region. References
// that name the region explicitly are preferred over the ones whose address
// range intersects the region. Among the candidates the default algorithm
// wins, then the first one. A Flash region without a candidate stays
// declarative only.
func (v *Variant) AttachAlgorithms() {
	for i := range v.Regions {
		r := &v.Regions[i]
		if r.Kind != Flash {
			continue
		}
		r.Algorithm = ""
		var explicit, implicit []*AlgorithmRef
		for k := range v.Algorithms {
			a := &v.Algorithms[k]
			switch {
			case a.Region != "":
				if a.Region == r.Name {
					explicit = append(explicit, a)
				}
			case a.Size != 0 && r.overlaps(a.Start, a.Start+a.Size) &&
				(a.Core == "" || len(r.Cores) == 0 || slices.Contains(r.Cores, a.Core)):
				implicit = append(implicit, a)
			}
		}
		cand := explicit
		if len(cand) == 0 {
			cand = implicit
		}
		if len(cand) == 0 {
			continue
		}
		pick := cand[0]
		for _, a := range cand {
			if a.Default {
				pick = a
				break
			}
		}
		r.Algorithm = pick.Name
	}
}

// ResolveAll resolves every leaf of the tree. Errors of single variants are
// joined, the variants that resolved are returned in leaf order.
func ResolveAll(t *pdsc.Tree) ([]*Variant, error) {
	var (
		vs   []*Variant
		errs []error
	)
	for _, leaf := range t.Leaves() {
		v, err := Resolve(t, leaf)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		vs = append(vs, v)
	}
	return vs, errors.Join(errs...)
}
