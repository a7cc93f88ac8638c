// Package manifest handles avmdec.toml configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/diysoho/jpexs-decompiler/compiler"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "avmdec.toml"

// ErrUnknownIdiom is returned when disabled-idioms names an idiom that does
// not exist.
var ErrUnknownIdiom = errors.New("unknown idiom")

// Manifest represents an avmdec.toml configuration.
type Manifest struct {
	Project   Project   `toml:"project"`
	Render    Render    `toml:"render"`
	Generate  Generate  `toml:"generate"`
	Decompile Decompile `toml:"decompile"`
	Log       Log       `toml:"log"`
	Cache     Cache     `toml:"cache"`

	// Dir is the directory containing the avmdec.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Render configures the text writer.
type Render struct {
	Indent    string `toml:"indent"`
	Positions bool   `toml:"positions"`
}

// Generate configures instruction regeneration.
type Generate struct {
	ConstantPool  bool `toml:"constant-pool"`
	CombinePushes bool `toml:"combine-pushes"`
}

// Decompile configures the builder.
type Decompile struct {
	DisabledIdioms []string `toml:"disabled-idioms"`
	ControlFlow    bool     `toml:"control-flow"`
	Workers        int      `toml:"workers"`
}

// Log configures logging verbosity.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Cache configures the translation cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no avmdec.toml exists.
func Default() *Manifest {
	return &Manifest{
		Render:    Render{Indent: "  ", Positions: true},
		Generate:  Generate{ConstantPool: true},
		Decompile: Decompile{ControlFlow: true},
		Cache:     Cache{Path: filepath.Join(".avmdec", "cache.db")},
	}
}

// Load parses an avmdec.toml file from the given directory. Keys missing
// from the file keep their Default values.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find an avmdec.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Write encodes m as avmdec.toml in dir.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// Validate checks values that toml decoding cannot.
func (m *Manifest) Validate() error {
	known := make(map[string]bool)
	for _, name := range compiler.IdiomNames() {
		known[name] = true
	}
	for _, name := range m.Decompile.DisabledIdioms {
		if !known[name] {
			return fmt.Errorf("disabled-idioms: %w %q", ErrUnknownIdiom, name)
		}
	}
	if strings.Trim(m.Render.Indent, " \t") != "" {
		return fmt.Errorf("render.indent must be spaces or tabs, got %q", m.Render.Indent)
	}
	if m.Decompile.Workers < 0 {
		return fmt.Errorf("decompile.workers must not be negative, got %d", m.Decompile.Workers)
	}
	return nil
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Cache.Path) || m.Dir == "" {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}

// DecompileOptions converts the [decompile] section.
func (m *Manifest) DecompileOptions() compiler.DecompileOptions {
	return compiler.DecompileOptions{
		DisabledIdioms: append([]string(nil), m.Decompile.DisabledIdioms...),
		ControlFlow:    m.Decompile.ControlFlow,
		Workers:        m.Decompile.Workers,
	}
}

// RenderOptions converts the [render] section.
func (m *Manifest) RenderOptions() compiler.RenderOptions {
	return compiler.RenderOptions{Indent: m.Render.Indent, Positions: m.Render.Positions}
}

// GenerateOptions converts the [generate] section.
func (m *Manifest) GenerateOptions() compiler.GenerateOptions {
	return compiler.GenerateOptions{
		ConstantPool:  m.Generate.ConstantPool,
		CombinePushes: m.Generate.CombinePushes,
	}
}
