// Command avmdec translates AVM1 action streams to source text and back.
//
// Usage:
//
//	avmdec init                       # write avmdec.toml in the current directory
//	avmdec disasm frame1.act          # list instructions
//	avmdec decompile frame1.act ...   # render source text
//	avmdec roundtrip frame1.act ...   # decompile, regenerate and compare
//	avmdec patch frame1.act -o p.cbor # emit a replacement record
package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/diysoho/jpexs-decompiler/manifest"
)

const version = "0.3.0"

// Context carries global state shared by all commands.
type Context struct {
	Manifest *manifest.Manifest
	Quiet    bool
}

var CLI struct {
	Dir     string   `help:"Project directory searched for avmdec.toml" default:"." type:"path"`
	Verbose int      `help:"Increase log verbosity" short:"v" type:"counter"`
	LogFile string   `help:"Write logs to this file instead of stderr" name:"log-file"`
	Quiet   bool     `help:"Suppress status output" short:"q"`
	NoColor bool     `help:"Disable colored output" name:"no-color"`
	NoCache bool     `help:"Bypass the translation cache" name:"no-cache"`
	Workers int      `help:"Scripts translated in parallel, 0 uses the manifest setting" default:"0"`
	NoFlow  bool     `help:"Emit gotos instead of recovering if/else/while" name:"no-flow"`
	Disable []string `help:"Idiom to leave unfolded (repeatable)" name:"disable-idiom"`

	Init      InitCmd      `cmd:"" help:"Write a default avmdec.toml"`
	Disasm    DisasmCmd    `cmd:"" help:"List the instructions of action files"`
	Decompile DecompileCmd `cmd:"" help:"Render action files as source text"`
	Roundtrip RoundtripCmd `cmd:"" help:"Decompile, regenerate and compare action files"`
	Patch     PatchCmd     `cmd:"" help:"Regenerate one action file into a CBOR patch record"`
	Cache     CacheCmd     `cmd:"" help:"Inspect or clear the translation cache"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("avmdec"),
		kong.Description("AVM1 action bytecode decompiler and regenerator"),
		kong.UsageOnError(),
	)

	if CLI.NoColor {
		color.NoColor = true
	}

	m, err := loadManifest(CLI.Dir)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	applyOverrides(m)
	if err := m.Validate(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	configureLogging(m)

	err = ctx.Run(&Context{Manifest: m, Quiet: CLI.Quiet})
	ctx.FatalIfErrorf(err)
}

// loadManifest finds avmdec.toml at or above dir, falling back to defaults.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
		m.Dir = dir
	}
	return m, nil
}

// applyOverrides folds command-line flags into the loaded manifest.
func applyOverrides(m *manifest.Manifest) {
	if CLI.Verbose > 0 {
		m.Log.Verbosity = CLI.Verbose
	}
	if CLI.LogFile != "" {
		m.Log.Path = CLI.LogFile
	}
	if CLI.NoCache {
		m.Cache.Enabled = false
	}
	if CLI.Workers > 0 {
		m.Decompile.Workers = CLI.Workers
	}
	if CLI.NoFlow {
		m.Decompile.ControlFlow = false
	}
	m.Decompile.DisabledIdioms = append(m.Decompile.DisabledIdioms, CLI.Disable...)
}

func configureLogging(m *manifest.Manifest) {
	var path *string
	if m.Log.Path != "" {
		path = &m.Log.Path
	}
	commonlog.Configure(m.Log.Verbosity, path)
}
