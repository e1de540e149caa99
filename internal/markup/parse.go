package markup

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoRoot is returned when a document contains no element at all.
var ErrNoRoot = errors.New("document has no root element")

// Parse reads a well-formed XML document and returns its root element.
// Comments, processing instructions and directives are dropped; character
// data and CDATA sections become text.
func Parse(r io.Reader) (*Element, error) {
	decoder := xml.NewDecoder(r)

	var (
		root  *Element
		stack []*Element
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("unexpected element <%s> after document root", t.Name.Local)
			}
			el := &Element{Tag: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				el.Attrs = append(el.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			appendText(stack[len(stack)-1], string(t))
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// appendText adds character data to the element's leading text, or to the
// tail of its last child once a child has been seen.
func appendText(el *Element, text string) {
	if n := len(el.Children); n > 0 {
		el.Children[n-1].Tail += text
		return
	}
	el.Text += text
}

// ParseFile opens and parses the document at path.
func ParseFile(path string) (*Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}
