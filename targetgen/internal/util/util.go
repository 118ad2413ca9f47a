// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/viant/afs"
)

// Stderr is where the diagnostics go.
var Stderr io.Writer = os.Stderr

func Warn(f string, args ...any) {
	fmt.Fprintf(Stderr, f+"\n", args...)
}

// OutName infers the name of the output file from the name of the input file
// if outName is an empty string.
func OutName(inName, outName, outSuffix string) string {
	if outName != "" {
		return outName
	}
	return BaseName(inName) + outSuffix
}

// BaseName returns the last element of a path or URL without its extension.
func BaseName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// ReadFile reads a local file or any URL supported by afs.
func ReadFile(ctx context.Context, url string) ([]byte, error) {
	data, err := afs.New().DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}
