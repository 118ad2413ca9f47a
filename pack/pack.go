// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pack provides read access to CMSIS-Pack archives.
package pack

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"
)

// ErrArchive is the category of all errors caused by an unreadable archive.
var ErrArchive = errors.New("pack archive error")

// CorruptArchiveError indicates that the data is not a readable zip archive.
type CorruptArchiveError struct {
	Err error
}

func (e *CorruptArchiveError) Error() string {
	return "corrupt pack archive: " + e.Err.Error()
}

func (e *CorruptArchiveError) Unwrap() error        { return e.Err }
func (e *CorruptArchiveError) Is(target error) bool { return target == ErrArchive }

// EntryNotFoundError indicates that the archive has no entry with the given
// path.
type EntryNotFoundError struct {
	Path string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("pack entry not found: %s", e.Path)
}

func (e *EntryNotFoundError) Is(target error) bool { return target == ErrArchive }

var hashKey = []byte("CMSIS-Pack target generator key.")

// Archive is an opened pack. It is immutable and safe for concurrent use.
type Archive struct {
	id      string
	files   map[string]*zip.File
	names   []string
	pdsc    string
	hasPDSC bool
}

// Open opens a pack held in memory.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &CorruptArchiveError{err}
	}
	id, err := identity(data)
	if err != nil {
		return nil, err
	}
	a := &Archive{
		id:    id,
		files: make(map[string]*zip.File, len(zr.File)),
	}
	var pdscs []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if _, ok := a.files[f.Name]; ok {
			return nil, &CorruptArchiveError{
				fmt.Errorf("duplicate entry %s", f.Name),
			}
		}
		a.files[f.Name] = f
		a.names = append(a.names, f.Name)
		if strings.HasSuffix(strings.ToLower(f.Name), ".pdsc") {
			pdscs = append(pdscs, f.Name)
		}
	}
	if len(pdscs) != 0 {
		sort.Slice(pdscs, func(i, j int) bool {
			di := strings.Count(pdscs[i], "/")
			dj := strings.Count(pdscs[j], "/")
			if di != dj {
				return di < dj
			}
			return pdscs[i] < pdscs[j]
		})
		a.pdsc = pdscs[0]
		a.hasPDSC = true
	}
	return a, nil
}

func identity(data []byte) (string, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return "", err
	}
	h.Write(data)
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], h.Sum64())
	return hex.EncodeToString(sum[:]), nil
}

// Fetch downloads the pack from url (any scheme supported by fs) and opens
// it.
func Fetch(ctx context.Context, fs afs.Service, url string) (*Archive, error) {
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return Open(data)
}

// ID returns the identity of the archive content. Archives with the same
// content have the same ID.
func (a *Archive) ID() string {
	return a.id
}

// Entries returns the names of all file entries in stored order.
func (a *Archive) Entries() []string {
	return append([]string(nil), a.names...)
}

// ReadEntry returns the content of the entry. The name is matched exactly.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, &EntryNotFoundError{name}
	}
	r, err := f.Open()
	if err != nil {
		return nil, &CorruptArchiveError{fmt.Errorf("%s: %w", name, err)}
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &CorruptArchiveError{fmt.Errorf("%s: %w", name, err)}
	}
	return data, nil
}

// DescriptorPath returns the name of the family descriptor entry: the .pdsc
// file closest to the archive root.
func (a *Archive) DescriptorPath() (string, bool) {
	return a.pdsc, a.hasPDSC
}

// Descriptor returns the content of the family descriptor document.
func (a *Archive) Descriptor() ([]byte, error) {
	if !a.hasPDSC {
		return nil, &EntryNotFoundError{"*.pdsc"}
	}
	return a.ReadEntry(a.pdsc)
}

// Resolve returns the entry name of a path given relative to the descriptor.
func (a *Archive) Resolve(ref string) string {
	dir := path.Dir(a.pdsc)
	if dir == "." {
		return ref
	}
	return dir + "/" + ref
}
