package registry

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/bbcoder/internal/errors"
	"github.com/conneroisu/bbcoder/internal/logging"
	"github.com/conneroisu/bbcoder/internal/markup"
	"github.com/conneroisu/bbcoder/internal/normalize"
)

// Resolver locates an included file. searchDir is the directory of the
// including document.
type Resolver interface {
	FindFile(filename, searchDir string) (string, bool)
}

// Builder runs discovery over an include graph.
type Builder struct {
	resolver Resolver
	logger   logging.Logger
}

// NewBuilder creates a builder resolving includes through resolver.
func NewBuilder(resolver Resolver, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		resolver: resolver,
		logger:   logger.WithComponent("registry"),
	}
}

// walk holds the state of one Build call.
type walk struct {
	ctx      context.Context
	registry *Registry
	// stack is the chain of documents currently being visited.
	stack []string
	// onStack indexes stack by absolute path.
	onStack map[string]int
}

// Build processes the document at path and everything it includes.
//
// Includes are processed depth first before a document's own classes and
// templates, and later definitions replace earlier ones, so a document's own
// definitions win over anything it includes and a later sibling include wins
// over an earlier one.
func (b *Builder) Build(ctx context.Context, path string) (*Registry, error) {
	w := &walk{
		ctx:      ctx,
		registry: New(),
		onStack:  make(map[string]int),
	}
	if err := b.processFile(w, path); err != nil {
		return nil, err
	}
	b.logger.Debug(ctx, "Discovery completed",
		"root", path,
		"documents", len(w.registry.documents),
		"classes", w.registry.ClassNames(),
		"templates", w.registry.TemplateNames())
	return w.registry, nil
}

func (b *Builder) processFile(w *walk, path string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}

	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	if start, visiting := w.onStack[key]; visiting {
		chain := append(append([]string{}, w.stack[start:]...), path)
		return errors.NewCircularIncludeError(chain)
	}
	w.onStack[key] = len(w.stack)
	w.stack = append(w.stack, path)
	defer func() {
		delete(w.onStack, key)
		w.stack = w.stack[:len(w.stack)-1]
	}()

	root, err := markup.LoadDocument(path)
	if err != nil {
		return err
	}
	w.registry.documents = append(w.registry.documents, path)
	b.logger.Debug(w.ctx, "Processing document", "path", path, "depth", len(w.stack))

	if err := b.processIncludes(w, root, filepath.Dir(path)); err != nil {
		return errors.AttachFile(err, path)
	}

	if classes := root.Find(markup.TagClasses); classes != nil {
		if err := processClasses(w.registry, classes); err != nil {
			return errors.AttachFile(err, path)
		}
	}

	if templates := root.Find(markup.TagTemplates); templates != nil {
		if err := processTemplates(w.registry, templates); err != nil {
			return errors.AttachFile(err, path)
		}
	}

	return nil
}

func (b *Builder) processIncludes(w *walk, root *markup.Element, dir string) error {
	for _, include := range root.FindAll(markup.TagInclude) {
		src, ok := include.Attr("src")
		if !ok {
			return errors.NewMissingAttributeError("src", markup.TagInclude)
		}
		resolved, found := b.resolver.FindFile(src, dir)
		if !found {
			return errors.NewFileNotFoundError(src)
		}
		if err := b.processFile(w, resolved); err != nil {
			return err
		}
	}
	return nil
}

// processClasses stores each class body with its line breaks collapsed to
// single spaces.
func processClasses(reg *Registry, classes *markup.Element) error {
	for _, class := range classes.FindAll(markup.TagClass) {
		name, ok := class.Attr("name")
		if !ok {
			return errors.NewMissingAttributeError("name", markup.TagClass)
		}
		reg.Classes[name] = normalize.Collapse(class.Text, normalize.ClassSeparator)
	}
	return nil
}

// processTemplates stores an owned copy of each template, unrendered.
func processTemplates(reg *Registry, templates *markup.Element) error {
	for _, tmpl := range templates.FindAll(markup.TagTemplate) {
		name, ok := tmpl.Attr("name")
		if !ok {
			return errors.NewMissingAttributeError("name", markup.TagTemplate)
		}
		reg.Templates[name] = tmpl.Clone()
	}
	return nil
}
