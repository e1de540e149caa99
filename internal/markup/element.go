// Package markup holds the in-memory tree of a parsed BBXML document.
//
// An Element carries its tag, its attributes in document order, the text
// that appears before its first child, and its children. Text that follows a
// child inside the parent is stored on the child as Tail, so the pairs
// (child, trailing text) keep their document order.
package markup

// Attr is a single attribute of an element.
type Attr struct {
	Name  string
	Value string
}

// Element is a node of a parsed document.
type Element struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Element
	Tail     string
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Find returns the first direct child with the given tag, or nil.
func (e *Element) Find(tag string) *Element {
	for _, child := range e.Children {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

// FindAll returns the direct children with the given tag in document order.
func (e *Element) FindAll(tag string) []*Element {
	var found []*Element
	for _, child := range e.Children {
		if child.Tag == tag {
			found = append(found, child)
		}
	}
	return found
}

// Append adds child with its trailing text and returns the receiver.
func (e *Element) Append(child *Element, tail string) *Element {
	child.Tail = tail
	e.Children = append(e.Children, child)
	return e
}

// Clone returns a deep copy of the element and its subtree.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := &Element{
		Tag:  e.Tag,
		Text: e.Text,
		Tail: e.Tail,
	}
	if e.Attrs != nil {
		c.Attrs = make([]Attr, len(e.Attrs))
		copy(c.Attrs, e.Attrs)
	}
	if e.Children != nil {
		c.Children = make([]*Element, len(e.Children))
		for i, child := range e.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}
