// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gen drives the generation of target descriptors from packs.
package gen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/embeddedgo/targetgen/flashalgo"
	"github.com/embeddedgo/targetgen/memmap"
	"github.com/embeddedgo/targetgen/pack"
	"github.com/embeddedgo/targetgen/pdsc"
	"github.com/embeddedgo/targetgen/target"
)

// Group selects the layout of the output files.
type Group uint8

const (
	ByVariant Group = iota // one file per variant
	ByFamily               // one file per device family
)

var groupNames = [...]string{ByVariant: "variant", ByFamily: "family"}

func (g Group) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	return fmt.Sprintf("Group(%d)", g)
}

func ParseGroup(s string) (Group, error) {
	for i, name := range groupNames {
		if s == name {
			return Group(i), nil
		}
	}
	return 0, fmt.Errorf("unknown output grouping %q", s)
}

type Options struct {
	Workers int // 0 means GOMAXPROCS
	Group   Group
	Indent  int
	Extract flashalgo.Options
}

// Fetcher retrieves and opens packs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*pack.Archive, error)
}

// Store persists the generated files.
type Store interface {
	Store(ctx context.Context, name string, data []byte) error
}

// FileCollisionError reports a variant or family whose output file name is
// already taken by another one.
type FileCollisionError struct {
	File  string
	Name  string
	Other string
}

func (e *FileCollisionError) Error() string {
	return fmt.Sprintf("%s: output file %s is already used by %s", e.Name, e.File, e.Other)
}

// Result is the outcome of one device variant.
type Result struct {
	Variant    string
	Descriptor *target.Descriptor
	Err        error
}

// PackResult is the outcome of one pack. Results are sorted by variant name.
type PackResult struct {
	URL     string
	Pack    string
	Results []Result
	Files   []string
}

// Failed returns the number of variants that failed.
func (pr *PackResult) Failed() int {
	n := 0
	for _, r := range pr.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

type Generator struct {
	opts   Options
	fetch  Fetcher
	store  Store
	report Reporter
	run    string
}

// New returns a generator. The reporter may be nil.
func New(f Fetcher, s Store, r Reporter, opts Options) *Generator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if r == nil {
		r = ReporterFunc(func(Event) {})
	}
	return &Generator{opts: opts, fetch: f, store: s, report: r, run: uuid.NewString()}
}

// RunID returns the identifier of this generator run.
func (g *Generator) RunID() string {
	return g.run
}

func (g *Generator) emit(e Event) {
	e.Run = g.run
	g.report.Report(e)
}

// Run processes the packs one after another. Failures of single packs are
// reported and do not stop the others. The returned error joins the pack
// level errors.
func (g *Generator) Run(ctx context.Context, urls []string) ([]*PackResult, error) {
	var (
		prs  []*PackResult
		errs []error
	)
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		pr, err := g.Process(ctx, u)
		if pr != nil {
			prs = append(prs, pr)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
		}
	}
	g.emit(Event{Kind: RunDone})
	return prs, errors.Join(errs...)
}

// Process fetches one pack, generates the descriptors of all its variants
// and stores them.
func (g *Generator) Process(ctx context.Context, url string) (*PackResult, error) {
	g.emit(Event{Kind: PackStarted, Pack: url})
	a, err := g.fetch.Fetch(ctx, url)
	if err != nil {
		g.emit(Event{Kind: PackFailed, Pack: url, Err: err})
		return nil, err
	}
	pr, err := g.Generate(ctx, a)
	if pr != nil {
		pr.URL = url
	}
	if err == nil {
		err = g.write(ctx, pr)
	}
	if err != nil {
		g.emit(Event{Kind: PackFailed, Pack: url, Err: err})
		return pr, err
	}
	g.emit(Event{Kind: PackDone, Pack: pr.Pack, Total: len(pr.Results), Failed: pr.Failed()})
	return pr, nil
}

// Generate resolves and synthesizes all variants of the opened pack. Errors
// of the archive or the descriptor document abort the pack, errors of single
// variants are recorded in their results.
func (g *Generator) Generate(ctx context.Context, a *pack.Archive) (*PackResult, error) {
	doc, err := a.Descriptor()
	if err != nil {
		return nil, err
	}
	tree, err := pdsc.Parse(doc)
	if err != nil {
		return nil, err
	}
	leaves := tree.Leaves()
	pr := &PackResult{Pack: tree.PackID(), Results: make([]Result, len(leaves))}
	cache := flashalgo.NewCache()
	clash := g.collisions(tree, leaves)

	var eg errgroup.Group
	eg.SetLimit(g.opts.Workers)
	for i, leaf := range leaves {
		eg.Go(func() error {
			r := Result{Variant: tree.Node(leaf).Name}
			if err := ctx.Err(); err != nil {
				r.Err = err
			} else if err, ok := clash[leaf]; ok {
				r.Err = err
			} else {
				r.Descriptor, r.Err = g.device(a, tree, leaf, cache)
			}
			pr.Results[i] = r
			e := Event{Kind: DeviceDone, Pack: pr.Pack, Device: r.Variant, Err: r.Err}
			if r.Err != nil {
				e.Kind = DeviceFailed
			}
			g.emit(e)
			return nil
		})
	}
	eg.Wait()
	sort.SliceStable(pr.Results, func(i, j int) bool {
		return pr.Results[i].Variant < pr.Results[j].Variant
	})
	return pr, ctx.Err()
}

// outputName returns the name the output file of the leaf is derived from.
func (g *Generator) outputName(t *pdsc.Tree, leaf int) string {
	if g.opts.Group == ByFamily {
		if f := t.Ancestor(leaf, pdsc.KindFamily); f >= 0 {
			return t.Node(f).Name
		}
		return ""
	}
	return t.Node(leaf).Name
}

// collisions returns the leaves whose output file is already claimed by a
// different name. Names claim files in sorted order.
func (g *Generator) collisions(t *pdsc.Tree, leaves []int) map[int]error {
	names := make([]string, len(leaves))
	for i, leaf := range leaves {
		names[i] = g.outputName(t, leaf)
	}
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	owner := make(map[string]string, len(sorted))
	lost := make(map[string]error)
	for _, name := range sorted {
		file := FileName(name)
		if other, ok := owner[file]; ok {
			lost[name] = &FileCollisionError{File: file, Name: name, Other: other}
			continue
		}
		owner[file] = name
	}
	clash := make(map[int]error)
	for i, leaf := range leaves {
		if err, ok := lost[names[i]]; ok {
			clash[leaf] = err
		}
	}
	return clash
}

func (g *Generator) device(a *pack.Archive, tree *pdsc.Tree, leaf int, cache *flashalgo.Cache) (*target.Descriptor, error) {
	v, err := memmap.Resolve(tree, leaf)
	if err != nil {
		return nil, err
	}
	algos := make(map[string]*flashalgo.Algorithm, len(v.Algorithms))
	for i := range v.Algorithms {
		ref := &v.Algorithms[i]
		alg, err := g.algorithm(a, v, ref, cache)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", v.ID(), a.Resolve(ref.Path), err)
		}
		algos[ref.Name] = alg
	}
	d, err := target.Synthesize(v, algos)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.ID(), err)
	}
	return d, nil
}

// algorithm returns the algorithm image from the cache and places it
// according to the reference. A reference with only RAMstart gets the rest
// of the RAM region holding it. A reference without RAMstart uses the first
// RAM region available to the core.
func (g *Generator) algorithm(a *pack.Archive, v *memmap.Variant, ref *memmap.AlgorithmRef, cache *flashalgo.Cache) (*flashalgo.Algorithm, error) {
	entry := a.Resolve(ref.Path)
	im, err := cache.Image(flashalgo.Key{Archive: a.ID(), Path: entry}, func() (*flashalgo.Image, error) {
		data, err := a.ReadEntry(entry)
		if err != nil {
			return nil, err
		}
		return flashalgo.Parse(data, g.opts.Extract)
	})
	if err != nil {
		return nil, err
	}
	start, size := ref.Start, ref.Size
	meta := flashalgo.Metadata{
		Name:       ref.Name,
		Default:    ref.Default,
		Core:       ref.Core,
		FlashStart: &start,
		FlashSize:  &size,
		RAMStart:   ref.RAMStart,
		RAMSize:    ref.RAMSize,
	}
	switch {
	case meta.RAMStart != nil && meta.RAMSize == nil:
		if r, ok := ramAt(v, *meta.RAMStart); ok {
			ramSize := r.End() - *meta.RAMStart
			meta.RAMSize = &ramSize
		}
	case meta.RAMStart == nil:
		if r, ok := v.RAMFor(ref.Core); ok {
			ramStart, ramSize := r.Start, r.Size
			if meta.RAMSize != nil {
				ramSize = *meta.RAMSize
			}
			meta.RAMStart, meta.RAMSize = &ramStart, &ramSize
		}
	}
	return im.Place(meta)
}

// ramAt returns the RAM region containing addr.
func ramAt(v *memmap.Variant, addr uint64) (*memmap.Region, bool) {
	for i := range v.Regions {
		r := &v.Regions[i]
		if r.Kind == memmap.RAM && r.Start <= addr && addr < r.End() {
			return r, true
		}
	}
	return nil, false
}

var fileNameReplacer = strings.NewReplacer("/", "_", `\`, "_", " ", "_", ":", "_")

// FileName returns the output file name for a variant or family name.
func FileName(name string) string {
	return fileNameReplacer.Replace(name) + ".yaml"
}

func (g *Generator) write(ctx context.Context, pr *PackResult) error {
	var ds []*target.Descriptor
	for _, r := range pr.Results {
		if r.Err == nil {
			ds = append(ds, r.Descriptor)
		}
	}
	if g.opts.Group == ByVariant {
		for _, d := range ds {
			if err := g.put(ctx, pr, d.Name, d); err != nil {
				return err
			}
		}
		return nil
	}
	families := make(map[string][]*target.Descriptor)
	for _, d := range ds {
		families[d.Family] = append(families[d.Family], d)
	}
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := g.put(ctx, pr, name, target.NewFamily(name, families[name])); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) put(ctx context.Context, pr *PackResult, name string, v any) error {
	var buf bytes.Buffer
	if err := target.Encode(&buf, v, g.opts.Indent); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	file := FileName(name)
	if err := g.store.Store(ctx, file, buf.Bytes()); err != nil {
		return fmt.Errorf("store %s: %w", file, err)
	}
	pr.Files = append(pr.Files, file)
	g.emit(Event{Kind: FileWritten, Pack: pr.Pack, File: file})
	return nil
}
