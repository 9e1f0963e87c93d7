// Package project locates and reads krait.toml.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the project file searched for upward from the working directory.
const ManifestName = "krait.toml"

// Manifest is a loaded krait.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the sections of krait.toml. Unset engine fields are nil so
// the CLI can tell them apart from explicit zeros.
type Config struct {
	Run    RunConfig    `toml:"run"`
	Engine EngineConfig `toml:"engine"`
	Paths  PathsConfig  `toml:"paths"`
}

type RunConfig struct {
	Main string   `toml:"main"`
	Args []string `toml:"args"`
}

type EngineConfig struct {
	OSModules   *bool `toml:"os_modules"`
	StackSize   *int  `toml:"stack_size"`
	GCThreshold *int  `toml:"gc_threshold"`
}

type PathsConfig struct {
	// Modules are directories searched by import, relative to the manifest.
	Modules []string `toml:"modules"`
}

// Find walks up from startDir to locate krait.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load finds and parses the nearest manifest. ok is false when none exists.
func Load(startDir string) (m *Manifest, ok bool, err error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := Parse(path)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{Path: path, Root: filepath.Dir(path), Config: cfg}, true, nil
}

// Parse decodes one manifest file and validates it.
func Parse(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("run", "main") && strings.TrimSpace(cfg.Run.Main) == "" {
		return Config{}, fmt.Errorf("%s: [run].main is empty", path)
	}
	if v := cfg.Engine.StackSize; v != nil && *v <= 0 {
		return Config{}, fmt.Errorf("%s: [engine].stack_size must be positive", path)
	}
	if v := cfg.Engine.GCThreshold; v != nil && *v <= 0 {
		return Config{}, fmt.Errorf("%s: [engine].gc_threshold must be positive", path)
	}
	return cfg, nil
}

// MainPath resolves [run].main against the manifest directory.
func (m *Manifest) MainPath() (string, error) {
	rel := strings.TrimSpace(m.Config.Run.Main)
	if rel == "" {
		return "", fmt.Errorf("%s: missing [run].main", m.Path)
	}
	p := filepath.Join(m.Root, filepath.FromSlash(rel))
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: [run].main path does not exist: %s", m.Path, p)
		}
		return "", fmt.Errorf("%s: failed to stat [run].main: %w", m.Path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: [run].main must be a file", m.Path)
	}
	return p, nil
}

// ModuleDirs resolves [paths].modules against the manifest directory.
func (m *Manifest) ModuleDirs() []string {
	dirs := make([]string, 0, len(m.Config.Paths.Modules))
	for _, d := range m.Config.Paths.Modules {
		if filepath.IsAbs(d) {
			dirs = append(dirs, d)
			continue
		}
		dirs = append(dirs, filepath.Join(m.Root, filepath.FromSlash(d)))
	}
	return dirs
}
