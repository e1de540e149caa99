package renderer

// Kind selects how a child element is translated.
type Kind int

const (
	// KindGeneric renders [TAG=options]content[/TAG].
	KindGeneric Kind = iota
	// KindLineBreak renders a newline.
	KindLineBreak
	// KindInclude expands a registered template.
	KindInclude
	// KindListItem renders [*]content.
	KindListItem
)

// Special tag names inside renderable content.
const (
	TagLineBreak = "br"
	TagInclude   = "include"
	TagListItem  = "li"
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindLineBreak:
		return "line-break"
	case KindInclude:
		return "include"
	case KindListItem:
		return "list-item"
	default:
		return "generic"
	}
}

// KindOf classifies a tag name. Tag names are case-sensitive.
func KindOf(tag string) Kind {
	switch tag {
	case TagLineBreak:
		return KindLineBreak
	case TagInclude:
		return KindInclude
	case TagListItem:
		return KindListItem
	default:
		return KindGeneric
	}
}
