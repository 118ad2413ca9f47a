// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/embeddedgo/targetgen/memmap"
	"github.com/embeddedgo/targetgen/pack"
	"github.com/embeddedgo/targetgen/pdsc"
	"github.com/embeddedgo/targetgen/targetgen/internal/printer"
)

func newListCmd() *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "list [flags] PACK",
		Short: "list the device variants described by the pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := pack.Fetch(cmd.Context(), afs.New(), args[0])
			if err != nil {
				return printer.Error("Cannot open the pack", err)
			}
			doc, err := a.Descriptor()
			if err != nil {
				return printer.Error("Cannot read the pack descriptor", err)
			}
			tree, err := pdsc.Parse(doc)
			if err != nil {
				return printer.Error("Invalid pack descriptor", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n", tree.PackID())
			for _, leaf := range tree.Leaves() {
				fmt.Fprintf(w, "  %s\n", tree.Node(leaf).Location)
				if !memory {
					continue
				}
				v, err := memmap.Resolve(tree, leaf)
				if err != nil {
					fmt.Fprintf(w, "    error: %v\n", err)
					continue
				}
				for _, r := range v.Regions {
					fmt.Fprintf(
						w, "    %-6s %-10s %#010x %#010x %s\n",
						r.Kind, r.Name, r.Start, r.Size, r.Access,
					)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&memory, "memory", "m", false, "print the resolved memory map of every variant")
	return cmd
}
