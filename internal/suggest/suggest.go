// Package suggest proposes form fields from the text of a page.
//
// Suggestions are advisory: callers show them to the user, who decides what
// to place. A failing suggester never blocks field placement or export.
package suggest

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
)

// MaxTextLength is the number of characters of page text a suggester looks at
const MaxTextLength = 8000

// Suggestion is one proposed field
type Suggestion struct {
	Name   string           `json:"name"`
	Kind   layout.FieldKind `json:"type"`
	Reason string           `json:"reason"`
}

// Suggester proposes fields for a page's text
type Suggester interface {
	Suggest(ctx context.Context, text string) ([]Suggestion, error)
}

// Truncate cuts text to MaxTextLength characters
func Truncate(text string) string {
	if len(text) <= MaxTextLength {
		return text
	}
	runes := []rune(text)
	if len(runes) <= MaxTextLength {
		return text
	}
	return string(runes[:MaxTextLength])
}

// CamelCase turns a label such as "Date of Birth" into "dateOfBirth"
func CamelCase(label string) string {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var sb strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 {
			runes := []rune(w)
			runes[0] = unicode.ToUpper(runes[0])
			w = string(runes)
		}
		sb.WriteString(w)
	}

	name := sb.String()
	if name == "" {
		return "field"
	}
	if unicode.IsDigit([]rune(name)[0]) {
		name = "field" + name
	}
	return name
}

// nameSet hands out unique names, suffixing repeats with 2, 3, ...
type nameSet map[string]bool

func (n nameSet) unique(name string) string {
	candidate := name
	for i := 2; n[candidate]; i++ {
		candidate = name + strconv.Itoa(i)
	}
	n[candidate] = true
	return candidate
}
