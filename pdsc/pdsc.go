// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pdsc describes the device part of the CMSIS-Pack description
// (.pdsc) format and parses it into a family tree.
package pdsc

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

type Uint uint64

func (u *Uint) UnmarshalXMLAttr(attr xml.Attr) error {
	v, err := strconv.ParseUint(strings.TrimSpace(attr.Value), 0, 64)
	if err != nil {
		return fmt.Errorf("attribute %s=%q: %w", attr.Name.Local, attr.Value, err)
	}
	*u = Uint(v)
	return nil
}

type Bool bool

func (b *Bool) UnmarshalXMLAttr(attr xml.Attr) error {
	switch strings.ToLower(strings.TrimSpace(attr.Value)) {
	case "1", "true":
		*b = true
	case "0", "false", "":
		*b = false
	default:
		return fmt.Errorf("attribute %s=%q: not a boolean", attr.Name.Local, attr.Value)
	}
	return nil
}

type Package struct {
	Vendor      string     `xml:"vendor"`
	Name        string     `xml:"name"`
	Description string     `xml:"description"`
	URL         string     `xml:"url"`
	Releases    []*Release `xml:"releases>release"`
	Families    []*Family  `xml:"devices>family"`
}

type Release struct {
	Version string `xml:"version,attr"`
	Date    string `xml:"date,attr"`
}

// Properties are the elements that may appear on every level of the device
// hierarchy.
type Properties struct {
	Processors  []*Processor `xml:"processor"`
	Memories    []*Memory    `xml:"memory"`
	Algorithms  []*Algorithm `xml:"algorithm"`
	Debugs      []*Debug     `xml:"debug"`
	Description *string      `xml:"description"`
}

type Family struct {
	Dfamily string `xml:"Dfamily,attr"`
	Dvendor string `xml:"Dvendor,attr"`
	Properties
	SubFamilies []*SubFamily `xml:"subFamily"`
	Devices     []*Device    `xml:"device"`
}

type SubFamily struct {
	DsubFamily string `xml:"DsubFamily,attr"`
	Properties
	Devices []*Device `xml:"device"`
}

type Device struct {
	Dname string `xml:"Dname,attr"`
	Properties
	Variants []*Variant `xml:"variant"`
}

type Variant struct {
	Dvariant string `xml:"Dvariant,attr"`
	Properties
}

type Processor struct {
	Pname        *string `xml:"Pname,attr"`
	Dcore        *string `xml:"Dcore,attr"`
	DcoreVersion *string `xml:"DcoreVersion,attr"`
	Dfpu         *string `xml:"Dfpu,attr"`
	Dmpu         *string `xml:"Dmpu,attr"`
	Dtz          *string `xml:"Dtz,attr"`
	Ddsp         *string `xml:"Ddsp,attr"`
	Dendian      *string `xml:"Dendian,attr"`
	Dclock       *Uint   `xml:"Dclock,attr"`
}

type Memory struct {
	ID      *string `xml:"id,attr"` // deprecated form: IRAMn, IROMn
	Name    *string `xml:"name,attr"`
	Access  *string `xml:"access,attr"`
	Pname   *string `xml:"Pname,attr"`
	Start   *Uint   `xml:"start,attr"`
	Size    *Uint   `xml:"size,attr"`
	Default *Bool   `xml:"default,attr"`
	Startup *Bool   `xml:"startup,attr"`
	Init    *Bool   `xml:"init,attr"`
	Uninit  *Bool   `xml:"uninit,attr"`
	Alias   *string `xml:"alias,attr"`
}

type Algorithm struct {
	Name     string  `xml:"name,attr"`
	Start    *Uint   `xml:"start,attr"`
	Size     *Uint   `xml:"size,attr"`
	RAMstart *Uint   `xml:"RAMstart,attr"`
	RAMsize  *Uint   `xml:"RAMsize,attr"`
	Default  *Bool   `xml:"default,attr"`
	Style    *string `xml:"style,attr"`
	Pname    *string `xml:"Pname,attr"`
}

type Debug struct {
	Pname *string `xml:"Pname,attr"`
	SVD   *string `xml:"svd,attr"`
}

// MemoryName returns the name of the memory: the name attribute or the
// deprecated id.
func (m *Memory) MemoryName() string {
	if m.Name != nil {
		return *m.Name
	}
	if m.ID != nil {
		return *m.ID
	}
	return ""
}
