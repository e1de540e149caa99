//go:build property

package renderer

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/bbcoder/internal/markup"
	"github.com/conneroisu/bbcoder/internal/registry"
)

// TestSubstitutionProperties validates placeholder substitution on generated text.
func TestSubstitutionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9753)
	parameters.MinSuccessfulTests = 150

	properties := gopter.NewProperties(parameters)
	r := New(registry.New(), Options{})

	// literal text never contains braces or line breaks
	literal := gen.AlphaString()
	name := gen.Identifier()

	// Property: a bound placeholder is replaced by the rendering of its element
	properties.Property("bound placeholder round-trip", prop.ForAll(
		func(left, right, key, value string) bool {
			bound := &markup.Element{Tag: "param", Text: value}
			var sb strings.Builder
			if err := r.renderText(&sb, left+"{"+key+"}"+right, Context{key: bound}, 0); err != nil {
				return false
			}
			return sb.String() == left+value+right
		},
		literal, literal, name, literal,
	))

	// Property: an unbound placeholder disappears without error
	properties.Property("unbound placeholder is dropped", prop.ForAll(
		func(left, right, key string) bool {
			var sb strings.Builder
			if err := r.renderText(&sb, left+"{"+key+"}"+right, nil, 0); err != nil {
				return false
			}
			return sb.String() == left+right
		},
		literal, literal, name,
	))

	// Property: generic tags are always closed with the upper-cased tag name
	properties.Property("generic tags are balanced", prop.ForAll(
		func(tag, text string) bool {
			if KindOf(tag) != KindGeneric {
				return true
			}
			el := &markup.Element{Tag: "body"}
			el.Append(&markup.Element{Tag: tag, Text: text}, "")
			out, err := r.RenderString(el, nil)
			if err != nil {
				return false
			}
			upper := strings.ToUpper(tag)
			return out == "["+upper+"]"+text+"[/"+upper+"]"
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		literal,
	))

	properties.TestingRun(t)
}
