// Package story provides thin views over a story part: its root element and
// per-element content lookup by Self token.
package story

import (
	"strings"

	"github.com/dimelords/idmlsplice/internal/ioerr"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

// View wraps one parsed Stories/Story_<token>.xml document.
type View struct {
	doc *xmldoc.Doc
}

// New wraps doc as a story View.
func New(doc *xmldoc.Doc) (*View, error) {
	if doc.Root() == nil {
		return nil, ioerr.New("story", "new", "", ioerr.KindMalformedPackage, nil)
	}
	return &View{doc: doc}, nil
}

// Root returns the story's root element.
func (v *View) Root() *xmldoc.Element { return v.doc.Root() }

// GetElementByID returns the element carrying Self=token within this story.
func (v *View) GetElementByID(token string) (*xmldoc.Element, bool) {
	return v.doc.FindBySelf(token)
}

// GetElementContentByID returns the concatenated text content of the
// element carrying Self=token: every text run inside it, joined with no
// separator, preserving embedded special characters (e.g. U+2029) verbatim.
func (v *View) GetElementContentByID(token string) (string, bool) {
	e, ok := v.GetElementByID(token)
	if !ok {
		return "", false
	}
	return elementText(e), true
}

// elementText concatenates every text run in e and its descendants, in
// document order, with no inserted separators.
func elementText(e *xmldoc.Element) string {
	var b strings.Builder
	var walk func(*xmldoc.Element)
	walk = func(el *xmldoc.Element) {
		b.WriteString(el.Text())
		for _, c := range el.ChildElements() {
			walk(c)
			b.WriteString(c.Tail())
		}
	}
	walk(e)
	return b.String()
}
