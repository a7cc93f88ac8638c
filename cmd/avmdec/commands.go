package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"

	"github.com/diysoho/jpexs-decompiler/compiler"
	"github.com/diysoho/jpexs-decompiler/compiler/hash"
	"github.com/diysoho/jpexs-decompiler/diag"
	"github.com/diysoho/jpexs-decompiler/manifest"
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
	"github.com/diysoho/jpexs-decompiler/store"
	"github.com/diysoho/jpexs-decompiler/wire"
)

// InitCmd writes a default manifest.
type InitCmd struct {
	Name  string `help:"Project name" default:""`
	Force bool   `help:"Overwrite an existing avmdec.toml"`
}

func (c *InitCmd) Run(ctx *Context) error {
	path := filepath.Join(CLI.Dir, manifest.FileName)
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%w: %s", ErrManifestExists, path)
	}

	m := manifest.Default()
	m.Project.Name = c.Name
	if m.Project.Name == "" {
		abs, err := filepath.Abs(CLI.Dir)
		if err != nil {
			return err
		}
		m.Project.Name = filepath.Base(abs)
	}
	if err := manifest.Write(CLI.Dir, m); err != nil {
		return err
	}
	if !ctx.Quiet {
		color.Green("Created %s", path)
	}
	return nil
}

// DisasmCmd lists instructions.
type DisasmCmd struct {
	Files []string `arg:"" help:"Action files" type:"existingfile"`
}

func (c *DisasmCmd) Run(ctx *Context) error {
	scripts, err := readScripts(c.Files)
	if err != nil {
		return err
	}
	for i, s := range scripts {
		if len(scripts) > 1 {
			if i > 0 {
				fmt.Println()
			}
			color.Cyan("; %s", s.Name)
		}
		fmt.Print(s.Disassemble())
	}
	return nil
}

// DecompileCmd renders source text.
type DecompileCmd struct {
	Files  []string `arg:"" help:"Action files" type:"existingfile"`
	Output string   `help:"Directory receiving one .as file per script, stdout when empty" short:"o" type:"path"`
}

func (c *DecompileCmd) Run(ctx *Context) error {
	scripts, err := readScripts(c.Files)
	if err != nil {
		return err
	}
	m := ctx.Manifest
	entries, err := translate(context.Background(), m, scripts)
	if err != nil {
		return err
	}

	if c.Output != "" {
		if err := os.MkdirAll(c.Output, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	failed := 0
	for i, e := range entries {
		if e == nil {
			failed++
			continue
		}
		printDiagnostics(wire.ToDiagnostics(e.Script, e.Diagnostics))
		if c.Output == "" {
			if len(scripts) > 1 {
				if i > 0 {
					fmt.Println()
				}
				color.Cyan("// %s", e.Script)
			}
			fmt.Print(e.Source)
			continue
		}
		out := filepath.Join(c.Output, e.Script+".as")
		if err := os.WriteFile(out, []byte(e.Source), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		if !ctx.Quiet {
			color.Green("Generated: %s", out)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrScriptsFailed, failed, len(scripts))
	}
	return nil
}

// RoundtripCmd decompiles, regenerates and compares.
type RoundtripCmd struct {
	Files []string `arg:"" help:"Action files" type:"existingfile"`
	Show  bool     `help:"Print both listings for scripts that differ"`
}

func (c *RoundtripCmd) Run(ctx *Context) error {
	scripts, err := readScripts(c.Files)
	if err != nil {
		return err
	}
	bg := context.Background()
	m := ctx.Manifest

	failed := 0
	for i, r := range compiler.DecompileAll(bg, scripts, m.DecompileOptions()) {
		name, script := r.Script, scripts[i]
		if r.Err != nil {
			color.Red("%s: %v", name, r.Err)
			failed++
			continue
		}
		printDiagnostics(r.Result.Diagnostics)

		out, err := compiler.Regenerate(bg, r.Result.Nodes, m.GenerateOptions())
		if err != nil {
			color.Red("%s: %v", name, err)
			failed++
			continue
		}

		if bytecode.Equivalent(script.Instructions, script.Constants, out.Instructions, nil) {
			if !ctx.Quiet {
				color.Green("%s: identical", name)
			}
			continue
		}

		// The first regeneration may normalize the stream. A second pass
		// must reproduce it exactly.
		stable, err := fixpoint(bg, m, name, out)
		if err != nil {
			color.Red("%s: %v", name, err)
			failed++
			continue
		}
		if stable {
			if !ctx.Quiet {
				color.Yellow("%s: normalized (stable after one pass)", name)
			}
			continue
		}

		at := bytecode.Diff(script.Instructions, script.Constants, out.Instructions, nil)
		color.Red("%s: differs at instruction %d", name, at)
		if c.Show {
			fmt.Println(strings.Join(bytecode.DisassembleToLines(script.Instructions, script.Constants), "\n"))
			fmt.Println("---")
			fmt.Println(strings.Join(bytecode.DisassembleToLines(out.Instructions, nil), "\n"))
		}
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrScriptsFailed, failed, len(scripts))
	}
	return nil
}

// fixpoint reports whether regenerating the decompiled form of out yields
// out again.
func fixpoint(ctx context.Context, m *manifest.Manifest, name string, out *compiler.Output) (bool, error) {
	again, err := compiler.Decompile(ctx, &bytecode.Script{Name: name, Instructions: out.Instructions}, m.DecompileOptions())
	if err != nil {
		return false, err
	}
	second, err := compiler.Regenerate(ctx, again.Nodes, m.GenerateOptions())
	if err != nil {
		return false, err
	}
	return bytecode.Equivalent(out.Instructions, nil, second.Instructions, nil), nil
}

// PatchCmd writes a CBOR patch record for one script.
type PatchCmd struct {
	File   string `arg:"" help:"Action file" type:"existingfile"`
	Output string `help:"Patch file" short:"o" required:"" type:"path"`
	Force  bool   `help:"Regenerate even when the tree matches the cached rendering"`
}

func (c *PatchCmd) Run(ctx *Context) error {
	scripts, err := readScripts([]string{c.File})
	if err != nil {
		return err
	}
	script := scripts[0]
	bg := context.Background()
	m := ctx.Manifest

	d, err := compiler.Decompile(bg, script, m.DecompileOptions())
	if err != nil {
		return err
	}
	printDiagnostics(d.Diagnostics)

	source := script.Fingerprint()
	var patch *wire.Patch
	if !c.Force && matchesCache(bg, m, source, d.Nodes) {
		patch = &wire.Patch{
			Version:   wire.Version,
			Script:    script.Name,
			Source:    source,
			Actions:   script.Bytes(),
			Unchanged: true,
		}
	} else {
		out, err := compiler.Regenerate(bg, d.Nodes, m.GenerateOptions())
		if err != nil {
			return err
		}
		printDiagnostics(out.Diagnostics)
		patch = wire.NewPatch(script.Name, source, out)
	}

	data, err := wire.MarshalPatch(patch)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Output, err)
	}
	if !ctx.Quiet {
		if patch.Unchanged {
			color.Green("Wrote %s (unchanged, %d bytes)", c.Output, len(patch.Actions))
		} else {
			color.Green("Wrote %s (%d bytes)", c.Output, len(patch.Actions))
		}
	}
	return nil
}

// matchesCache reports whether the cached rendering of source was taken
// from the same tree as nodes.
func matchesCache(ctx context.Context, m *manifest.Manifest, source [32]byte, nodes []compiler.Node) bool {
	if !m.Cache.Enabled {
		return false
	}
	s, err := store.Open(m.CachePath())
	if err != nil {
		log.Warningf("cache unavailable: %v", err)
		return false
	}
	defer s.Close()

	e, ok, err := s.Get(ctx, source, store.Variant(m.DecompileOptions(), m.RenderOptions()))
	if err != nil || !ok {
		return false
	}
	return hash.Baseline{Sum: e.Tree}.Unchanged(nodes)
}

// CacheCmd reports or clears the translation cache.
type CacheCmd struct {
	Clear bool `help:"Remove every cached entry"`
}

func (c *CacheCmd) Run(ctx *Context) error {
	s, err := store.Open(ctx.Manifest.CachePath())
	if err != nil {
		return err
	}
	defer s.Close()

	bg := context.Background()
	if c.Clear {
		if err := s.Purge(bg); err != nil {
			return err
		}
		if !ctx.Quiet {
			color.Green("Cache cleared")
		}
		return nil
	}
	n, err := s.Len(bg)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d entr%s\n", ctx.Manifest.CachePath(), n, plural(n, "y", "ies"))
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(ctx *Context) error {
	fmt.Printf("avmdec %s (%s/%s, %s)\n", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	return nil
}

// translate decompiles and renders scripts, consulting the cache when it is
// enabled. The result holds nil for scripts that failed.
func translate(ctx context.Context, m *manifest.Manifest, scripts []*bytecode.Script) ([]*wire.Entry, error) {
	entries := make([]*wire.Entry, len(scripts))
	variant := store.Variant(m.DecompileOptions(), m.RenderOptions())

	var cache *store.Store
	if m.Cache.Enabled {
		s, err := store.Open(m.CachePath())
		if err != nil {
			log.Warningf("cache unavailable: %v", err)
		} else {
			cache = s
			defer cache.Close()
		}
	}

	var (
		pending []*bytecode.Script
		slots   []int // index into scripts for each pending script
	)
	for i, s := range scripts {
		if cache != nil {
			e, ok, err := cache.Get(ctx, s.Fingerprint(), variant)
			if err != nil {
				log.Warningf("cache lookup for %s: %v", s.Name, err)
			} else if ok {
				e.Script = s.Name
				entries[i] = e
				continue
			}
		}
		pending = append(pending, s)
		slots = append(slots, i)
	}
	log.Debugf("%d cached, %d to translate", len(scripts)-len(pending), len(pending))

	for j, r := range compiler.DecompileAll(ctx, pending, m.DecompileOptions()) {
		if r.Err != nil {
			if errors.Is(r.Err, compiler.ErrCancelled) {
				return nil, r.Err
			}
			color.Red("%s: %v", r.Script, r.Err)
			continue
		}
		script := pending[j]
		text, err := compiler.Render(ctx, r.Result.Nodes, m.RenderOptions())
		if err != nil {
			return nil, err
		}
		e := &wire.Entry{
			Version:     wire.Version,
			Script:      script.Name,
			Fingerprint: script.Fingerprint(),
			Tree:        hash.Take(r.Result.Nodes).Sum,
			Source:      text.Source,
			Positions:   wire.FromPositions(text.Positions),
			Diagnostics: wire.FromDiagnostics(append(r.Result.Diagnostics, text.Diagnostics...)),
		}
		entries[slots[j]] = e
		if cache != nil {
			if err := cache.Put(ctx, variant, e); err != nil {
				log.Warningf("cache store for %s: %v", e.Script, err)
			}
		}
	}
	return entries, nil
}

// readScripts loads raw action files. Each script is named after its file.
func readScripts(files []string) ([]*bytecode.Script, error) {
	scripts := make([]*bytecode.Script, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		s, err := bytecode.NewScript(name, data)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

func printDiagnostics(ds []diag.Diagnostic) {
	for _, d := range ds {
		if d.Script != "" {
			color.Yellow("warning: %s: %s", d.Script, d)
		} else {
			color.Yellow("warning: %s", d)
		}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
