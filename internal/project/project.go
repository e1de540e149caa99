// Package project loads a bbcoder project manifest and resolves source files
// against the project's search path.
package project

import (
	"os"
	"path/filepath"
	"sort"
)

// AllTargets is the default-target sentinel meaning "build every target".
const AllTargets = "_all"

// Project describes the targets of a project and where to look for sources.
type Project struct {
	// Directory is the directory containing the manifest. Relative lookups
	// are anchored here.
	Directory string
	// Include lists extra search directories, relative to Directory, in
	// lookup order.
	Include []string
	// Targets maps a target name to its root source file.
	Targets map[string]string
	// DefaultTarget is built when no target is named. AllTargets when unset.
	DefaultTarget string
}

// New creates an empty project rooted at dir.
func New(dir string) *Project {
	return &Project{
		Directory:     dir,
		Targets:       make(map[string]string),
		DefaultTarget: AllTargets,
	}
}

// TargetNames returns the target names sorted.
func (p *Project) TargetNames() []string {
	names := make([]string, 0, len(p.Targets))
	for name := range p.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTarget reports whether name is a declared target.
func (p *Project) HasTarget(name string) bool {
	_, ok := p.Targets[name]
	return ok
}

// DefaultTargetValid reports whether the default target is either the
// all-targets sentinel or a declared target.
func (p *Project) DefaultTargetValid() bool {
	return p.DefaultTarget == AllTargets || p.HasTarget(p.DefaultTarget)
}

// FindFile locates filename within the project.
//
// An absolute filename is returned only if it exists. A relative one is
// tried, in order, under the project directory, under searchDir (itself taken
// relative to the project directory), and under each include path. The first
// existing candidate wins.
func (p *Project) FindFile(filename, searchDir string) (string, bool) {
	if filepath.IsAbs(filename) {
		if exists(filename) {
			return filename, true
		}
		return "", false
	}

	candidates := make([]string, 0, len(p.Include)+2)
	candidates = append(candidates, filename, filepath.Join(searchDir, filename))
	for _, include := range p.Include {
		candidates = append(candidates, filepath.Join(include, filename))
	}

	for _, candidate := range candidates {
		path := p.anchor(candidate)
		if exists(path) {
			return path, true
		}
	}
	return "", false
}

// anchor joins a relative path under the project directory. Joining an
// absolute path leaves it as is, matching how an already absolute search
// directory behaves.
func (p *Project) anchor(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Directory, path)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
