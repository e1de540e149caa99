package renderer

import "github.com/conneroisu/bbcoder/internal/markup"

// Context binds placeholder names to the argument elements supplied at an
// include site.
type Context map[string]*markup.Element

// With returns a copy of c with bindings added. Entries in bindings replace
// inherited entries of the same name; c itself is not modified.
func (c Context) With(bindings map[string]*markup.Element) Context {
	merged := make(Context, len(c)+len(bindings))
	for name, el := range c {
		merged[name] = el
	}
	for name, el := range bindings {
		merged[name] = el
	}
	return merged
}

// Lookup returns the element bound to name.
func (c Context) Lookup(name string) (*markup.Element, bool) {
	el, ok := c[name]
	return el, ok
}
