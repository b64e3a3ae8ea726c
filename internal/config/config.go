// Package config handles arbor.toml host configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const FileName = "arbor.toml"

const DefaultMaxSteps = 1_000_000

// Config is the decoded arbor.toml.
type Config struct {
	Run    Run    `toml:"run"`
	Log    Log    `toml:"log"`
	Output Output `toml:"output"`

	// Dir is the directory holding the file; empty for defaults.
	Dir string `toml:"-"`
}

type Run struct {
	MaxSteps     int64  `toml:"max_steps"`
	MaxRecursion int    `toml:"max_recursion"`
	Optimize     bool   `toml:"optimize"`
	Entry        string `toml:"entry"`
}

type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

type Output struct {
	Color  string `toml:"color"`
	Format string `toml:"format"`
}

func Default() *Config {
	return &Config{
		Run: Run{MaxSteps: DefaultMaxSteps},
		Output: Output{
			Color:  "auto",
			Format: "text",
		},
	}
}

// Load parses the file at path on top of the defaults. Unknown keys are
// rejected so that typos do not silently fall back to a default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve path %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

// FindAndLoad walks up from startDir looking for arbor.toml. The defaults
// are returned when no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) Validate() error {
	if c.Run.MaxSteps < 0 {
		return errors.Errorf("run.max_steps must not be negative, got %d", c.Run.MaxSteps)
	}
	if c.Run.MaxRecursion < 0 {
		return errors.Errorf("run.max_recursion must not be negative, got %d", c.Run.MaxRecursion)
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return errors.Errorf("output.color must be auto, always or never, got %q", c.Output.Color)
	}
	switch c.Output.Format {
	case "text", "lsp":
	default:
		return errors.Errorf("output.format must be text or lsp, got %q", c.Output.Format)
	}
	return nil
}

// EntryPath resolves run.entry against the directory of the file.
func (c *Config) EntryPath() string {
	if c.Run.Entry == "" || filepath.IsAbs(c.Run.Entry) || c.Dir == "" {
		return c.Run.Entry
	}
	return filepath.Join(c.Dir, c.Run.Entry)
}

// UseColor decides whether diagnostics are coloured for a stream that is
// (or is not) a terminal.
func (c *Config) UseColor(terminal bool) bool {
	switch c.Output.Color {
	case "always":
		return true
	case "never":
		return false
	}
	return terminal
}
