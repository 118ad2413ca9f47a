// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Targetgen converts CMSIS device family packs into target descriptors.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/embeddedgo/targetgen/targetgen/internal/cmd"
)

// Set during build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cmd.SetVersion(version, commit)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cmd.Execute(ctx, os.Args[1:])
	stop()
	// Errors are already printed by the commands.
	if err != nil {
		os.Exit(1)
	}
}
