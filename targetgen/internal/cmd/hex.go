// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/targetgen/targetgen/internal/config"
	"github.com/embeddedgo/targetgen/targetgen/internal/printer"
	"github.com/embeddedgo/targetgen/targetgen/internal/util"
)

func newHexCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var p placement
	cmd := &cobra.Command{
		Use:   "hex [flags] FLM [HEX]",
		Short: "write the placed flash algorithm in the Intel HEX format",
		Long: `Write the flash algorithm placed at --ram-start in the Intel HEX format.
The name of the HEX file defaults to the name of the FLM file with the .hex
extension, in the current directory.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return printer.Error("Invalid configuration", err)
			}
			a, err := p.extract(cmd.Context(), c, args[0])
			if err != nil {
				return printer.Error("Extraction failed", err)
			}
			var hexName string
			if len(args) == 2 {
				hexName = args[1]
			}
			hexName = util.OutName(args[0], hexName, ".hex")
			of, err := os.Create(hexName)
			if err != nil {
				return printer.Error("Cannot create the HEX file", err)
			}
			defer of.Close()
			if err := a.WriteHex(of); err != nil {
				return printer.Error("Cannot write the HEX file", err)
			}
			if err := of.Close(); err != nil {
				return printer.Error("Cannot write the HEX file", err)
			}
			fmt.Fprintf(
				cmd.OutOrStdout(), "%s: LoadAddress: %#x DataLen: %d\n",
				hexName, a.LoadAddress, len(a.Blob),
			)
			return nil
		},
	}
	p.register(cmd.Flags())
	return cmd
}
