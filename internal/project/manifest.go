package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	bberrors "github.com/conneroisu/bbcoder/internal/errors"
	"github.com/conneroisu/bbcoder/internal/markup"
)

// DefaultPath is the manifest looked up when none is given.
const DefaultPath = "project.xml"

// Manifest tags and attributes.
const (
	manifestRoot = "project"
	tagInclude   = "include"
	tagPath      = "path"
	tagTargets   = "targets"
	tagTarget    = "target"
	attrName     = "name"
	attrSource   = "src"
	attrDefault  = "default"
)

// yamlManifest is the YAML form of a project manifest.
type yamlManifest struct {
	Include []string          `yaml:"include"`
	Targets map[string]string `yaml:"targets"`
	Default string            `yaml:"default"`
}

// Load reads the manifest at path. Files ending in .yml or .yaml are read as
// YAML, everything else as XML. The project directory is the manifest's
// directory.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bberrors.NewManifestError(bberrors.ErrCodeManifestInvalid, "Unable to open file", err).WithFile(path)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, bberrors.NewManifestError(bberrors.ErrCodeManifestInvalid, "Unable to resolve project directory", err).WithFile(path)
	}

	p := New(dir)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = p.decodeYAML(data)
	default:
		err = p.decodeXML(data)
	}
	if err != nil {
		var be *bberrors.BBCodeError
		if errors.As(err, &be) {
			return nil, be.WithFile(path)
		}
		return nil, err
	}

	if len(p.Targets) == 0 {
		return nil, bberrors.NewManifestError(bberrors.ErrCodeNoTargets, "No targets declared", nil).WithFile(path)
	}
	return p, nil
}

func (p *Project) decodeXML(data []byte) error {
	root, err := markup.Parse(bytes.NewReader(data))
	if err != nil {
		return bberrors.NewManifestError(bberrors.ErrCodeManifestInvalid, "Failed to parse XML", err)
	}
	if root.Tag != manifestRoot {
		return bberrors.NewManifestError(
			bberrors.ErrCodeManifestInvalid,
			fmt.Sprintf("Not a project file, invalid root tag '%s'", root.Tag),
			nil,
		)
	}

	if include := root.Find(tagInclude); include != nil {
		for _, path := range include.FindAll(tagPath) {
			p.Include = append(p.Include, strings.TrimSpace(path.Text))
		}
	}

	targets := root.Find(tagTargets)
	if targets == nil {
		return bberrors.NewManifestError(bberrors.ErrCodeNoTargets, "No target definitions found", nil)
	}
	for _, target := range targets.FindAll(tagTarget) {
		name, _ := target.Attr(attrName)
		src, _ := target.Attr(attrSource)
		if err := p.addTarget(name, src); err != nil {
			return err
		}
	}
	if def, ok := targets.Attr(attrDefault); ok && def != "" {
		p.DefaultTarget = def
	}
	return nil
}

func (p *Project) decodeYAML(data []byte) error {
	var m yamlManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return bberrors.NewManifestError(bberrors.ErrCodeManifestInvalid, "Failed to parse YAML", err)
	}
	if m.Targets == nil {
		return bberrors.NewManifestError(bberrors.ErrCodeNoTargets, "No target definitions found", nil)
	}

	for _, include := range m.Include {
		p.Include = append(p.Include, strings.TrimSpace(include))
	}
	// yaml.v3 already rejects duplicate mapping keys
	for name, src := range m.Targets {
		if err := p.addTarget(name, src); err != nil {
			return err
		}
	}
	if m.Default != "" {
		p.DefaultTarget = m.Default
	}
	return nil
}

func (p *Project) addTarget(name, src string) error {
	switch {
	case name == "":
		return bberrors.NewManifestError(bberrors.ErrCodeManifestInvalid, "Target is missing a 'name'", nil)
	case src == "":
		return bberrors.NewManifestError(
			bberrors.ErrCodeManifestInvalid,
			fmt.Sprintf("Target '%s' is missing a 'src'", name),
			nil,
		).WithTarget(name)
	case name == AllTargets:
		return bberrors.NewManifestError(
			bberrors.ErrCodeManifestInvalid,
			fmt.Sprintf("Target name '%s' is reserved", AllTargets),
			nil,
		)
	case p.HasTarget(name):
		return bberrors.NewManifestError(
			bberrors.ErrCodeManifestInvalid,
			fmt.Sprintf("Duplicate target '%s'", name),
			nil,
		).WithTarget(name)
	}
	p.Targets[name] = src
	return nil
}

// SelectTargets returns the targets to build for the requested name. An empty
// name selects the default target; AllTargets, or a default that names no
// declared target, selects every target in name order.
func (p *Project) SelectTargets(name string) ([]string, error) {
	if name == "" {
		name = p.DefaultTarget
		if !p.DefaultTargetValid() {
			name = AllTargets
		}
	}
	if name == AllTargets {
		return p.TargetNames(), nil
	}
	if !p.HasTarget(name) {
		return nil, bberrors.NewTargetNotFoundError(name)
	}
	return []string{name}, nil
}
