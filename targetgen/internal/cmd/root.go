// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmd implements the targetgen commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/targetgen/targetgen/internal/config"
	"github.com/embeddedgo/targetgen/targetgen/internal/printer"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion sets the version information printed by targetgen --version.
func SetVersion(v, c string) {
	version, commit = v, c
}

// NewRoot returns the root command with all subcommands attached.
func NewRoot() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:   "targetgen",
		Short: "Generate target descriptors from CMSIS device family packs",
		Long: `targetgen converts CMSIS-Pack device family packs into self-contained
target descriptors: memory maps, cores and ready to run flash algorithms for
every device variant described by the pack.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(
		&configFile, "config", "c", config.DefaultFile,
		"configuration file, ignored if it does not exist",
	)
	loadConfig := func() (*config.Config, error) {
		return config.LoadOptional(configFile)
	}
	root.AddCommand(
		newPackCmd(loadConfig),
		newAlgoCmd(loadConfig),
		newHexCmd(loadConfig),
		newListCmd(),
	)
	return root
}

// Execute runs the command selected by args.
func Execute(ctx context.Context, args []string) error {
	root := NewRoot()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && !printer.Printed(err) {
		printer.Error(err.Error(), nil)
	}
	return err
}
