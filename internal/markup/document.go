package markup

import (
	"errors"
	"os"

	bberrors "github.com/conneroisu/bbcoder/internal/errors"
)

// Tags with structural meaning in a BBXML document.
const (
	DocumentRoot = "bbxml"
	TagInclude   = "include"
	TagClasses   = "classes"
	TagClass     = "class"
	TagTemplates = "templates"
	TagTemplate  = "template"
	TagBody      = "body"
	TagParam     = "param"
)

// LoadDocument parses the BBXML file at path and checks its root tag.
func LoadDocument(path string) (*Element, error) {
	root, err := ParseFile(path)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil, bberrors.NewIOError(bberrors.ErrCodeOpenFile, "Unable to open file", err).WithFile(path)
		}
		return nil, bberrors.NewXMLParseError(path, err)
	}
	if root.Tag != DocumentRoot {
		return nil, bberrors.NewInvalidRootError(path, DocumentRoot, root.Tag)
	}
	return root, nil
}
