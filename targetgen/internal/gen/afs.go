// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gen

import (
	"bytes"
	"context"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/embeddedgo/targetgen/pack"
)

// AFS fetches packs and stores the generated files using an abstract file
// system, so both may be local paths or any URL supported by afs.
type AFS struct {
	FS     afs.Service
	Output string // base URL of the stored files
}

func NewAFS(output string) *AFS {
	return &AFS{FS: afs.New(), Output: output}
}

func (s *AFS) Fetch(ctx context.Context, u string) (*pack.Archive, error) {
	return pack.Fetch(ctx, s.FS, u)
}

func (s *AFS) Store(ctx context.Context, name string, data []byte) error {
	return s.FS.Upload(ctx, url.Join(s.Output, name), 0o644, bytes.NewReader(data))
}
