// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdsc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrDescriptor is the category of all errors caused by a malformed or
// ambiguous family descriptor document.
var ErrDescriptor = errors.New("pack descriptor error")

// MalformedDescriptorError indicates a descriptor that cannot be transcribed
// into a family tree. Location is either "line N" or a node path.
type MalformedDescriptorError struct {
	Location string
	Err      error
}

func (e *MalformedDescriptorError) Error() string {
	return fmt.Sprintf("malformed descriptor at %s: %v", e.Location, e.Err)
}

func (e *MalformedDescriptorError) Unwrap() error        { return e.Err }
func (e *MalformedDescriptorError) Is(target error) bool { return target == ErrDescriptor }

// DuplicateDeviceError indicates that a device or variant name is declared
// more than once in the document.
type DuplicateDeviceError struct {
	Name string
}

func (e *DuplicateDeviceError) Error() string {
	return fmt.Sprintf("duplicate device %s", e.Name)
}

func (e *DuplicateDeviceError) Is(target error) bool { return target == ErrDescriptor }

type Kind uint8

const (
	KindPackage Kind = iota
	KindFamily
	KindSubFamily
	KindDevice
	KindVariant
)

var kindNames = [...]string{
	KindPackage:   "package",
	KindFamily:    "family",
	KindSubFamily: "subFamily",
	KindDevice:    "device",
	KindVariant:   "variant",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Node is a node of the family tree. It holds only the properties declared
// by the corresponding element, nothing is inherited.
type Node struct {
	Kind       Kind
	Name       string
	Vendor     string // families only
	Location   string
	Parent     int // -1 for the root
	Children   []int
	Leaf       bool
	Processors []*Processor
	Memories   []*Memory
	Algorithms []*Algorithm
	Debugs     []*Debug
}

// Tree is an arena of nodes. The node 0 is the package root.
type Tree struct {
	Vendor  string
	Name    string
	Version string
	Nodes   []*Node
	leaves  []int
}

// PackID returns the pack identifier Vendor.Name.Version.
func (t *Tree) PackID() string {
	id := t.Vendor + "." + t.Name
	if t.Version != "" {
		id += "." + t.Version
	}
	return id
}

// Node returns the node with index i.
func (t *Tree) Node(i int) *Node {
	return t.Nodes[i]
}

// Leaves returns the indexes of all concrete variants in document order.
func (t *Tree) Leaves() []int {
	return append([]int(nil), t.leaves...)
}

// Path returns the node indexes from the root to the node i.
func (t *Tree) Path(i int) []int {
	var path []int
	for ; i >= 0; i = t.Nodes[i].Parent {
		path = append(path, i)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// Depth returns the distance of the node i from the root.
func (t *Tree) Depth(i int) int {
	d := 0
	for i = t.Nodes[i].Parent; i >= 0; i = t.Nodes[i].Parent {
		d++
	}
	return d
}

// Ancestor returns the nearest node of kind k on the path from the node i to
// the root, or -1.
func (t *Tree) Ancestor(i int, k Kind) int {
	for ; i >= 0; i = t.Nodes[i].Parent {
		if t.Nodes[i].Kind == k {
			return i
		}
	}
	return -1
}

// Parse transcribes the device section of a .pdsc document into a family
// tree.
func Parse(doc []byte) (*Tree, error) {
	d := xml.NewDecoder(bytes.NewReader(doc))
	p := new(Package)
	if err := d.Decode(p); err != nil {
		line, _ := d.InputPos()
		var se *xml.SyntaxError
		if errors.As(err, &se) {
			line = se.Line
		}
		return nil, &MalformedDescriptorError{fmt.Sprintf("line %d", line), err}
	}
	return Build(p)
}

type builder struct {
	t       *Tree
	devices map[string]bool
	leaves  map[string]bool
}

// Build transcribes an already decoded package.
func Build(p *Package) (*Tree, error) {
	t := &Tree{Vendor: p.Vendor, Name: p.Name}
	if len(p.Releases) != 0 {
		t.Version = p.Releases[0].Version
	}
	t.Nodes = append(t.Nodes, &Node{
		Kind: KindPackage, Name: t.PackID(), Location: "package", Parent: -1,
	})
	b := &builder{
		t:       t,
		devices: make(map[string]bool),
		leaves:  make(map[string]bool),
	}
	for i, f := range p.Families {
		if err := b.family(f, i); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (b *builder) family(f *Family, i int) error {
	if f.Dfamily == "" {
		loc := fmt.Sprintf("family[%d]", i+1)
		return &MalformedDescriptorError{loc, errors.New("missing Dfamily")}
	}
	n, err := b.add(KindFamily, f.Dfamily, 0, &f.Properties)
	if err != nil {
		return err
	}
	b.t.Nodes[n].Vendor = f.Dvendor
	for k, sf := range f.SubFamilies {
		if sf.DsubFamily == "" {
			loc := fmt.Sprintf("%s/subFamily[%d]", b.t.Nodes[n].Location, k+1)
			return &MalformedDescriptorError{loc, errors.New("missing DsubFamily")}
		}
		s, err := b.add(KindSubFamily, sf.DsubFamily, n, &sf.Properties)
		if err != nil {
			return err
		}
		if err := b.devs(sf.Devices, s); err != nil {
			return err
		}
	}
	return b.devs(f.Devices, n)
}

func (b *builder) devs(devs []*Device, parent int) error {
	for k, dev := range devs {
		if dev.Dname == "" {
			loc := fmt.Sprintf("%s/device[%d]", b.t.Nodes[parent].Location, k+1)
			return &MalformedDescriptorError{loc, errors.New("missing Dname")}
		}
		if b.devices[dev.Dname] {
			return &DuplicateDeviceError{dev.Dname}
		}
		b.devices[dev.Dname] = true
		d, err := b.add(KindDevice, dev.Dname, parent, &dev.Properties)
		if err != nil {
			return err
		}
		if len(dev.Variants) == 0 {
			if err := b.leaf(d); err != nil {
				return err
			}
			continue
		}
		for j, v := range dev.Variants {
			if v.Dvariant == "" {
				loc := fmt.Sprintf("%s/variant[%d]", b.t.Nodes[d].Location, j+1)
				return &MalformedDescriptorError{loc, errors.New("missing Dvariant")}
			}
			n, err := b.add(KindVariant, v.Dvariant, d, &v.Properties)
			if err != nil {
				return err
			}
			if err := b.leaf(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) leaf(n int) error {
	node := b.t.Nodes[n]
	if b.leaves[node.Name] {
		return &DuplicateDeviceError{node.Name}
	}
	b.leaves[node.Name] = true
	node.Leaf = true
	b.t.leaves = append(b.t.leaves, n)
	return nil
}

func (b *builder) add(kind Kind, name string, parent int, props *Properties) (int, error) {
	loc := strings.TrimSpace(name)
	if parent > 0 {
		loc = b.t.Nodes[parent].Location + "/" + loc
	}
	for i, m := range props.Memories {
		var what string
		switch {
		case m.MemoryName() == "":
			what = "memory without name or id"
		case m.Start == nil:
			what = "memory without start"
		case m.Size == nil:
			what = "memory without size"
		default:
			continue
		}
		return 0, &MalformedDescriptorError{
			fmt.Sprintf("%s/memory[%d]", loc, i+1), errors.New(what),
		}
	}
	for i, a := range props.Algorithms {
		var what string
		switch {
		case a.Name == "":
			what = "algorithm without name"
		case a.Start == nil:
			what = "algorithm without start"
		case a.Size == nil:
			what = "algorithm without size"
		default:
			continue
		}
		return 0, &MalformedDescriptorError{
			fmt.Sprintf("%s/algorithm[%d]", loc, i+1), errors.New(what),
		}
	}
	n := len(b.t.Nodes)
	b.t.Nodes = append(b.t.Nodes, &Node{
		Kind:       kind,
		Name:       name,
		Location:   loc,
		Parent:     parent,
		Processors: props.Processors,
		Memories:   props.Memories,
		Algorithms: props.Algorithms,
		Debugs:     props.Debugs,
	})
	b.t.Nodes[parent].Children = append(b.t.Nodes[parent].Children, n)
	return n, nil
}
