// Package registry implements the discovery phase of a build: it walks a
// document and its transitive includes and collects their class and template
// definitions.
package registry

import (
	"sort"

	"github.com/conneroisu/bbcoder/internal/markup"
)

// Classes maps a class name to its normalized text.
type Classes map[string]string

// Templates maps a template name to its raw, unrendered fragment.
type Templates map[string]*markup.Element

// Registry is the result of discovery. It is filled once by a Builder and
// only read afterwards.
type Registry struct {
	Classes   Classes
	Templates Templates

	// documents lists every document processed, in processing order.
	documents []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		Classes:   make(Classes),
		Templates: make(Templates),
	}
}

// Class returns the stored text of a class.
func (r *Registry) Class(name string) (string, bool) {
	text, ok := r.Classes[name]
	return text, ok
}

// Template returns the stored fragment of a template.
func (r *Registry) Template(name string) (*markup.Element, bool) {
	tmpl, ok := r.Templates[name]
	return tmpl, ok
}

// Documents returns the distinct documents that contributed to the registry,
// in the order they were first processed.
func (r *Registry) Documents() []string {
	seen := make(map[string]bool, len(r.documents))
	docs := make([]string, 0, len(r.documents))
	for _, d := range r.documents {
		if !seen[d] {
			seen[d] = true
			docs = append(docs, d)
		}
	}
	return docs
}

// ClassNames returns the registered class names sorted.
func (r *Registry) ClassNames() []string {
	names := make([]string, 0, len(r.Classes))
	for name := range r.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TemplateNames returns the registered template names sorted.
func (r *Registry) TemplateNames() []string {
	names := make([]string, 0, len(r.Templates))
	for name := range r.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
