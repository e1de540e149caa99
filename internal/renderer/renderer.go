// Package renderer converts BBXML element trees into BBCode text.
//
// Rendering walks an element's leading text and children in document order.
// Templates registered during discovery are expanded at <include> sites with
// their <param> children bound as placeholders, and {name} placeholders in
// text are replaced by the rendering of the bound element.
package renderer

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/bbcoder/internal/errors"
	"github.com/conneroisu/bbcoder/internal/markup"
	"github.com/conneroisu/bbcoder/internal/normalize"
	"github.com/conneroisu/bbcoder/internal/registry"
)

// DefaultMaxDepth bounds element nesting, template expansion included.
const DefaultMaxDepth = 256

// placeholderPattern matches {name} where name is Unicode word characters and
// hyphens.
var placeholderPattern = regexp.MustCompile(`\{([\p{L}\p{Nl}\p{M}\p{Nd}\p{Pc}-]+)\}`)

// Options tune rendering.
type Options struct {
	// Strict turns unbound placeholders and unknown class names into errors.
	Strict bool
	// MaxDepth is the deepest allowed nesting; zero means DefaultMaxDepth.
	MaxDepth int
}

// Renderer renders elements against a discovery registry. A Renderer is not
// safe for concurrent use.
type Renderer struct {
	registry *registry.Registry
	opts     Options
	upper    cases.Caser
}

// New creates a renderer reading classes and templates from reg.
func New(reg *registry.Registry, opts Options) *Renderer {
	if reg == nil {
		reg = registry.New()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Renderer{
		registry: reg,
		opts:     opts,
		upper:    cases.Upper(language.Und),
	}
}

// Body returns the renderable body of a document.
func Body(document *markup.Element) (*markup.Element, error) {
	body := document.Find(markup.TagBody)
	if body == nil {
		return nil, errors.NewStructuralError(errors.ErrCodeMissingBody, "No body was found in target root")
	}
	return body, nil
}

// RenderBody renders the body of document with an empty context.
func (r *Renderer) RenderBody(w io.Writer, document *markup.Element) error {
	body, err := Body(document)
	if err != nil {
		return err
	}
	return r.Render(w, body, nil)
}

// Render writes the BBCode rendering of el's content to w. The element's own
// tag is not emitted.
func (r *Renderer) Render(w io.Writer, el *markup.Element, ctx Context) error {
	return r.render(w, el, ctx, 0)
}

// RenderString renders el's content and returns it as a string.
func (r *Renderer) RenderString(el *markup.Element, ctx Context) (string, error) {
	var sb strings.Builder
	if err := r.Render(&sb, el, ctx); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Renderer) render(w io.Writer, el *markup.Element, ctx Context, depth int) error {
	if depth > r.opts.MaxDepth {
		return errors.NewStructuralError(
			errors.ErrCodeMaxDepth,
			fmt.Sprintf("Maximum render depth of %d exceeded in <%s>", r.opts.MaxDepth, el.Tag),
		)
	}

	if err := r.renderText(w, el.Text, ctx, depth); err != nil {
		return err
	}

	for _, child := range el.Children {
		if err := r.renderChild(w, child, ctx, depth); err != nil {
			return err
		}
		if err := r.renderText(w, child.Tail, ctx, depth); err != nil {
			return err
		}
	}

	return nil
}

// renderChild emits one child element without its tail text.
func (r *Renderer) renderChild(w io.Writer, child *markup.Element, ctx Context, depth int) error {
	switch KindOf(child.Tag) {
	case KindLineBreak:
		return write(w, "\n")

	case KindInclude:
		return r.renderInclude(w, child, ctx, depth)

	case KindListItem:
		if err := write(w, "[*]"); err != nil {
			return err
		}
		return r.render(w, child, ctx, depth+1)

	default:
		options, err := r.options(child)
		if err != nil {
			return err
		}
		tag := r.upper.String(child.Tag)
		open := "[" + tag + "]"
		if options != "" {
			open = "[" + tag + "=" + options + "]"
		}
		if err := write(w, open); err != nil {
			return err
		}
		if err := r.render(w, child, ctx, depth+1); err != nil {
			return err
		}
		return write(w, "[/"+tag+"]")
	}
}

// renderInclude expands the named template with the include's params bound
// on top of the caller's context.
func (r *Renderer) renderInclude(w io.Writer, include *markup.Element, ctx Context, depth int) error {
	name, ok := include.Attr("template")
	if !ok {
		return errors.NewMissingAttributeError("template", markup.TagInclude)
	}

	params := include.FindAll(markup.TagParam)
	bindings := make(map[string]*markup.Element, len(params))
	for _, param := range params {
		paramName, ok := param.Attr("name")
		if !ok {
			return errors.NewMissingAttributeError("name", markup.TagParam)
		}
		bindings[paramName] = param
	}

	tmpl, ok := r.registry.Template(name)
	if !ok {
		return errors.NewTemplateNotFoundError(name)
	}

	return r.render(w, tmpl, ctx.With(bindings), depth+1)
}

// options builds the value of a generic tag's option: the text of each known
// class in the class attribute followed by the literal option attribute.
func (r *Renderer) options(el *markup.Element) (string, error) {
	var sb strings.Builder

	if classes, ok := el.Attr("class"); ok {
		for _, class := range strings.Fields(classes) {
			text, known := r.registry.Class(class)
			if !known {
				if r.opts.Strict {
					return "", errors.NewStructuralError(
						errors.ErrCodeUnknownClass,
						fmt.Sprintf("Class '%s' not found", class),
					).WithContext("class", class)
				}
				continue
			}
			sb.WriteString(text)
		}
	}

	if option, ok := el.Attr("option"); ok {
		sb.WriteString(option)
	}

	return strings.TrimSpace(sb.String()), nil
}

// renderText emits a text segment with structural whitespace removed and
// placeholders substituted. A bound placeholder renders its element with an
// empty context so the caller's parameter names do not leak into arguments.
func (r *Renderer) renderText(w io.Writer, text string, ctx Context, depth int) error {
	if text == "" {
		return nil
	}
	compact := normalize.Collapse(text, normalize.Compact)

	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(compact, -1) {
		if err := write(w, compact[last:m[0]]); err != nil {
			return err
		}
		last = m[1]

		name := compact[m[2]:m[3]]
		bound, ok := ctx.Lookup(name)
		if !ok {
			if r.opts.Strict {
				return errors.NewStructuralError(
					errors.ErrCodeUnboundPlaceholder,
					fmt.Sprintf("Placeholder '{%s}' is not bound", name),
				).WithContext("placeholder", name)
			}
			continue
		}
		if err := r.render(w, bound, nil, depth+1); err != nil {
			return err
		}
	}

	return write(w, compact[last:])
}

func write(w io.Writer, s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(w, s); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "Failed to write to output")
	}
	return nil
}
