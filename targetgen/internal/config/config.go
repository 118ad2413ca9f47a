// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the targetgen configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/embeddedgo/targetgen/flashalgo"
	"github.com/embeddedgo/targetgen/targetgen/internal/gen"
)

// DefaultFile is the configuration file looked up in the current directory.
const DefaultFile = "targetgen.yml"

type Config struct {
	Output        string `yaml:"output"`         // directory or afs URL
	Group         string `yaml:"group"`          // variant or family
	Workers       int    `yaml:"workers"`        // 0 = GOMAXPROCS
	SegmentPolicy string `yaml:"segment_policy"` // largest or strict
	StackSize     uint64 `yaml:"stack_size"`
	Indent        int    `yaml:"indent"`
}

func Default() *Config {
	return &Config{
		Output:        ".",
		Group:         gen.ByVariant.String(),
		SegmentPolicy: flashalgo.Largest.String(),
		StackSize:     flashalgo.DefaultStackSize,
		Indent:        2,
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return c, nil
}

// LoadOptional loads the file at path if it exists or returns the defaults
// otherwise.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) Validate() error {
	if c.Output == "" {
		return fmt.Errorf("output must not be empty")
	}
	if _, err := gen.ParseGroup(c.Group); err != nil {
		return err
	}
	if _, err := flashalgo.ParseSegmentPolicy(c.SegmentPolicy); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0 (0 = number of CPUs), got %d", c.Workers)
	}
	if c.StackSize%8 != 0 {
		return fmt.Errorf("stack_size must be a multiple of 8, got %#x", c.StackSize)
	}
	if c.Indent < 0 || c.Indent > 8 {
		return fmt.Errorf("indent must be in range 0..8, got %d", c.Indent)
	}
	return nil
}

// Options returns the generator options. The configuration must be valid.
func (c *Config) Options() gen.Options {
	group, _ := gen.ParseGroup(c.Group)
	policy, _ := flashalgo.ParseSegmentPolicy(c.SegmentPolicy)
	return gen.Options{
		Workers: c.Workers,
		Group:   group,
		Indent:  c.Indent,
		Extract: flashalgo.Options{
			SegmentPolicy: policy,
			StackSize:     c.StackSize,
		},
	}
}
