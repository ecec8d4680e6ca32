// Package manifest handles bfc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/bfc/compiler"
)

// Manifest represents a bfc.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Tape    Tape    `toml:"tape"`
	Build   Build   `toml:"build"`
	Run     Run     `toml:"run"`

	// Dir is the directory containing the bfc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// Tape configures the boundary policy both back ends honor.
type Tape struct {
	Wrap bool `toml:"wrap"`
}

// Build configures assembly output.
type Build struct {
	Output string `toml:"output"`
}

// Run configures direct execution.
type Run struct {
	Input string `toml:"input"`
}

// Load parses a bfc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "bfc.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Entry == "" {
		m.Project.Entry = "main.bf"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a bfc.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "bfc.toml")
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

// Settings returns the boundary policy configured for the project.
func (m *Manifest) Settings() compiler.Settings {
	return compiler.Settings{Wrap: m.Tape.Wrap}
}

// EntryPath returns the absolute path of the project's entry source file.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Project.Entry)
}

// OutputPath returns the absolute path of the configured assembly output,
// or "" when none is configured.
func (m *Manifest) OutputPath() string {
	if m.Build.Output == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Build.Output)
}

// InputPath returns the absolute path of the configured program input
// file, or "" when none is configured.
func (m *Manifest) InputPath() string {
	if m.Run.Input == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Run.Input)
}
