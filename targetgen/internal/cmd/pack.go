// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/embeddedgo/targetgen/targetgen/internal/config"
	"github.com/embeddedgo/targetgen/targetgen/internal/gen"
	"github.com/embeddedgo/targetgen/targetgen/internal/printer"
)

func newPackCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		flags   config.Config
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "pack [flags] PACK...",
		Short: "generate the descriptors of all device variants in the packs",
		Long: `Generate the descriptors of all device variants in the packs. PACK is
a local path or any URL supported by afs (file, http, s3, gs, ...).
The descriptors are written to the output directory or URL, one file per
variant or per family. Variants that fail are reported and skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return printer.Error("Invalid configuration", err)
			}
			fs := cmd.Flags()
			if fs.Changed("output") {
				c.Output = flags.Output
			}
			if fs.Changed("group") {
				c.Group = flags.Group
			}
			if fs.Changed("workers") {
				c.Workers = flags.Workers
			}
			if fs.Changed("segment-policy") {
				c.SegmentPolicy = flags.SegmentPolicy
			}
			if fs.Changed("stack-size") {
				c.StackSize = flags.StackSize
			}
			if fs.Changed("indent") {
				c.Indent = flags.Indent
			}
			if err := c.Validate(); err != nil {
				return printer.Error("Invalid configuration", err)
			}
			s := gen.NewAFS(c.Output)
			r := printer.New(cmd.OutOrStdout(), verbose)
			g := gen.New(s, s, r, c.Options())
			if _, err := g.Run(cmd.Context(), args); err != nil {
				return printer.Error("Generation failed", err)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&flags.Output, "output", "o", ".", "output directory or URL")
	fs.StringVarP(&flags.Group, "group", "g", "variant", "one file per `variant` or per family")
	fs.IntVarP(&flags.Workers, "workers", "j", 0, "number of concurrently processed variants (0 = number of CPUs)")
	fs.StringVar(&flags.SegmentPolicy, "segment-policy", "largest", "selection of the code segment in algorithms: largest or strict")
	fs.Uint64Var(&flags.StackSize, "stack-size", 0x200, "stack reserved for flash algorithms")
	fs.IntVar(&flags.Indent, "indent", 2, "indentation of the YAML output")
	fs.BoolVarP(&verbose, "verbose", "v", false, "print every generated variant and file")
	return cmd
}
