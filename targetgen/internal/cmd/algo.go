// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/embeddedgo/targetgen/flashalgo"
	"github.com/embeddedgo/targetgen/target"
	"github.com/embeddedgo/targetgen/targetgen/internal/config"
	"github.com/embeddedgo/targetgen/targetgen/internal/printer"
	"github.com/embeddedgo/targetgen/targetgen/internal/util"
)

// placement holds the flags that place a single algorithm image.
type placement struct {
	name          string
	ramStart      uint64
	ramSize       uint64
	flashStart    uint64
	flashSize     uint64
	stackSize     uint64
	segmentPolicy string
	fs            *pflag.FlagSet
}

func (p *placement) register(fs *pflag.FlagSet) {
	p.fs = fs
	fs.StringVarP(&p.name, "name", "n", "", "algorithm name (default: file name without extension)")
	fs.Uint64Var(&p.ramStart, "ram-start", 0, "start of the RAM the algorithm runs in")
	fs.Uint64Var(&p.ramSize, "ram-size", 0, "size of the RAM the algorithm runs in")
	fs.Uint64Var(&p.flashStart, "flash-start", 0, "start of the programmed flash (default: from FlashDevice)")
	fs.Uint64Var(&p.flashSize, "flash-size", 0, "size of the programmed flash (default: from FlashDevice)")
	fs.Uint64Var(&p.stackSize, "stack-size", 0, "stack reserved for the algorithm (default: from configuration)")
	fs.StringVar(&p.segmentPolicy, "segment-policy", "", "selection of the code segment: largest or strict (default: from configuration)")
	cobra.MarkFlagRequired(fs, "ram-start")
	cobra.MarkFlagRequired(fs, "ram-size")
}

func (p *placement) set(name string, v *uint64) *uint64 {
	if !p.fs.Changed(name) {
		return nil
	}
	return v
}

// extract reads and places the algorithm image at url.
func (p *placement) extract(ctx context.Context, c *config.Config, url string) (*flashalgo.Algorithm, error) {
	if p.segmentPolicy != "" {
		c.SegmentPolicy = p.segmentPolicy
	}
	if p.fs.Changed("stack-size") {
		c.StackSize = p.stackSize
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	data, err := util.ReadFile(ctx, url)
	if err != nil {
		return nil, err
	}
	name := p.name
	if name == "" {
		name = util.BaseName(url)
	}
	meta := flashalgo.Metadata{
		Name:       name,
		Default:    true,
		RAMStart:   p.set("ram-start", &p.ramStart),
		RAMSize:    p.set("ram-size", &p.ramSize),
		FlashStart: p.set("flash-start", &p.flashStart),
		FlashSize:  p.set("flash-size", &p.flashSize),
	}
	a, err := flashalgo.Extract(data, meta, c.Options().Extract)
	if err != nil {
		return nil, err
	}
	if !a.Entries.EraseChip.Present {
		util.Warn("%s: no EraseChip, the flash is erased sector by sector", url)
	}
	if !a.Entries.Verify.Present {
		util.Warn("%s: no Verify", url)
	}
	return a, nil
}

func newAlgoCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var p placement
	cmd := &cobra.Command{
		Use:   "algo [flags] FLM",
		Short: "extract a flash algorithm and print it as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return printer.Error("Invalid configuration", err)
			}
			a, err := p.extract(cmd.Context(), c, args[0])
			if err != nil {
				return printer.Error("Extraction failed", err)
			}
			alg := target.NewAlgorithm(a.Name, a)
			return target.Encode(cmd.OutOrStdout(), &alg, c.Indent)
		},
	}
	p.register(cmd.Flags())
	return cmd
}
