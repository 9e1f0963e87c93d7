package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"krait/internal/project"
)

// engineSettings is the merged engine configuration: krait.toml first, then
// any flag the user set explicitly.
type engineSettings struct {
	OSModules   bool
	StackSize   int
	GCThreshold int
	ModuleDirs  []string
	Manifest    *project.Manifest
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("os-modules", false, "enable the os and sys host modules")
	cmd.Flags().Int("stack-size", 0, "value stack size in slots (0 = default)")
	cmd.Flags().Int("gc-threshold", 0, "allocations between collections (0 = default)")
}

// loadEngineSettings reads the manifest found from startDir and applies the
// engine flags on top. scriptDir, when set, is searched first by import.
func loadEngineSettings(cmd *cobra.Command, startDir, scriptDir string) (engineSettings, error) {
	var s engineSettings
	m, ok, err := project.Load(startDir)
	if err != nil {
		return s, err
	}
	if ok {
		s.Manifest = m
		eng := m.Config.Engine
		if eng.OSModules != nil {
			s.OSModules = *eng.OSModules
		}
		if eng.StackSize != nil {
			s.StackSize = *eng.StackSize
		}
		if eng.GCThreshold != nil {
			s.GCThreshold = *eng.GCThreshold
		}
	}

	flags := cmd.Flags()
	if flags.Changed("os-modules") {
		if s.OSModules, err = flags.GetBool("os-modules"); err != nil {
			return s, fmt.Errorf("failed to get os-modules flag: %w", err)
		}
	}
	if flags.Changed("stack-size") {
		if s.StackSize, err = flags.GetInt("stack-size"); err != nil {
			return s, fmt.Errorf("failed to get stack-size flag: %w", err)
		}
		if s.StackSize < 0 {
			return s, fmt.Errorf("--stack-size must not be negative")
		}
	}
	if flags.Changed("gc-threshold") {
		if s.GCThreshold, err = flags.GetInt("gc-threshold"); err != nil {
			return s, fmt.Errorf("failed to get gc-threshold flag: %w", err)
		}
		if s.GCThreshold < 0 {
			return s, fmt.Errorf("--gc-threshold must not be negative")
		}
	}

	if scriptDir != "" {
		s.ModuleDirs = append(s.ModuleDirs, scriptDir)
	}
	if s.Manifest != nil {
		for _, d := range s.Manifest.ModuleDirs() {
			if scriptDir == "" || filepath.Clean(d) != filepath.Clean(scriptDir) {
				s.ModuleDirs = append(s.ModuleDirs, d)
			}
		}
	}
	return s, nil
}
