// Package manifest handles pybricks.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/moffa90/go-pybricks/mpy"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "pybricks.toml"

// Manifest represents a pybricks.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Program Program `toml:"program"`

	// Dir is the directory containing the pybricks.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
	Hub  string `toml:"hub"` // advertised hub name, overrides device.name
}

// Program lists the program's source files relative to Dir.
type Program struct {
	Main    string   `toml:"main"`
	Modules []string `toml:"modules"`
	Output  string   `toml:"output"`
}

// Load parses a pybricks.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
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
	if m.Program.Main == "" {
		m.Program.Main = "main.py"
	}
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if m.Program.Output == "" {
		m.Program.Output = m.Project.Name + ".mpy"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a pybricks.toml file,
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
			return nil, nil
		}
		dir = parent
	}
}

// Paths returns absolute paths of the program files, main first, with
// duplicates of main or of each other removed.
func (m *Manifest) Paths() []string {
	seen := make(map[string]bool)
	var paths []string
	for _, p := range append([]string{m.Program.Main}, m.Program.Modules...) {
		abs := filepath.Join(m.Dir, p)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		paths = append(paths, abs)
	}
	return paths
}

// Sources reads the program files in image order. Two files that would
// produce the same module name are rejected.
func (m *Manifest) Sources() ([]mpy.Source, error) {
	sources, err := mpy.ReadSources(m.Paths()...)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	for i, src := range sources {
		name := mpy.LogicalName(i, src.Filename)
		if prev, ok := names[name]; ok {
			return nil, fmt.Errorf("modules %s and %s both map to %q", prev, src.Filename, name)
		}
		names[name] = src.Filename
	}
	return sources, nil
}

// OutputPath returns the absolute path compiled images are written to.
func (m *Manifest) OutputPath() string {
	if filepath.IsAbs(m.Program.Output) {
		return m.Program.Output
	}
	return filepath.Join(m.Dir, m.Program.Output)
}

// String returns a short description used in log output.
func (m *Manifest) String() string {
	mods := len(m.Paths()) - 1
	return fmt.Sprintf("%s (%s + %d module%s)", m.Project.Name, m.Program.Main, mods, plural(mods))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// IsProjectDir reports whether dir holds a pybricks.toml.
func IsProjectDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil && !info.IsDir()
}

// ResolveSources returns the sources for a CLI argument: a .py file, or a
// project directory with a manifest.
func ResolveSources(arg string) ([]mpy.Source, *Manifest, error) {
	if strings.HasSuffix(arg, ".py") {
		sources, err := mpy.ReadSources(arg)
		return sources, nil, err
	}

	m, err := FindAndLoad(arg)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, fmt.Errorf("%s is neither a .py file nor inside a project with %s", arg, FileName)
	}
	sources, err := m.Sources()
	if err != nil {
		return nil, nil, err
	}
	return sources, m, nil
}
