package diagfmt

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathMode selects how file paths are printed.
type PathMode uint8

const (
	PathModeAuto PathMode = iota // as given on the command line
	PathModeAbsolute
	PathModeRelative // relative to BaseDir
	PathModeBasename
)

var pathModeNames = map[string]PathMode{
	"auto":     PathModeAuto,
	"absolute": PathModeAbsolute,
	"relative": PathModeRelative,
	"basename": PathModeBasename,
}

func ParsePathMode(s string) (PathMode, error) {
	if m, ok := pathModeNames[strings.ToLower(s)]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("invalid path mode %q (expected auto|absolute|relative|basename)", s)
}

type PrettyOpts struct {
	Color     bool
	Context   int8 // lines of source printed above the offending one
	PathMode  PathMode
	BaseDir   string
	Width     uint8 // 0 = no clipping
	ShowNotes bool
}

type JSONOpts struct {
	IncludePositions bool
	PathMode         PathMode
	BaseDir          string
	Max              int // 0 = all
	IncludeNotes     bool
}

// formatPath leaves synthetic names like "<repl>" untouched.
func formatPath(path string, mode PathMode, baseDir string) string {
	if strings.HasPrefix(path, "<") {
		return path
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	case PathModeRelative:
		if baseDir != "" {
			if rel, err := filepath.Rel(baseDir, path); err == nil {
				path = rel
			}
		}
	case PathModeBasename:
		path = filepath.Base(path)
	}
	return filepath.ToSlash(path)
}
