// Package spread provides thin, generic views over a spread part: its pages
// and the page items geometrically owned by each page.
package spread

import (
	"github.com/shopspring/decimal"

	"github.com/dimelords/idmlsplice/internal/ioerr"
	"github.com/dimelords/idmlsplice/pkg/geom"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

// Face names a page's recto/verso side.
type Face string

const (
	Recto Face = "RECTO"
	Verso Face = "VERSO"
)

// pageItemTags lists the element tags treated as page items when computing
// a page's contents. InDesign has more item kinds than this; unknown ones
// are still visible through View.AllItems, but PageItems never returns
// them, whatever attributes they carry.
var pageItemTags = map[string]bool{
	"TextFrame":    true,
	"Rectangle":    true,
	"Oval":         true,
	"Polygon":      true,
	"GraphicLine":  true,
	"Group":        true,
	"Image":        true,
}

// View wraps one parsed Spreads/Spread_<token>.xml document.
type View struct {
	doc  *xmldoc.Doc
	root *xmldoc.Element // the <Spread> element
}

// New wraps doc as a spread View. doc's root is expected to be the <Spread>
// element; if it is the idPkg:Spread wrapper instead, the View wraps the
// wrapper's <Spread> child.
func New(doc *xmldoc.Doc) (*View, error) {
	root := doc.Root()
	if root != nil && root.Space == "idPkg" && root.Tag == "Spread" {
		for _, c := range root.ChildElements() {
			if c.Tag == "Spread" {
				root = c
				break
			}
		}
	}
	if root == nil || root.Tag != "Spread" {
		return nil, ioerr.New("spread", "new", "", ioerr.KindMalformedPackage, nil)
	}
	return &View{doc: doc, root: root}, nil
}

// Doc returns the underlying parsed document, for callers that mutate the
// tree through View and then need to refresh its Self-token index.
func (v *View) Doc() *xmldoc.Doc { return v.doc }

// Root returns the <Spread> element the View wraps.
func (v *View) Root() *xmldoc.Element { return v.root }

// Self returns the spread's own Self token.
func (v *View) Self() string { return v.root.SelectAttrValue(xmldoc.SelfAttr, "") }

// Pages returns the spread's <Page> children, in document order.
func (v *View) Pages() []*xmldoc.Element {
	var out []*xmldoc.Element
	for _, c := range v.root.ChildElements() {
		if c.Tag == "Page" {
			out = append(out, c)
		}
	}
	return out
}

// AllItems returns every non-Page child of the spread, in document order.
func (v *View) AllItems() []*xmldoc.Element {
	var out []*xmldoc.Element
	for _, c := range v.root.ChildElements() {
		if c.Tag != "Page" {
			out = append(out, c)
		}
	}
	return out
}

// Bounds parses an element's GeometricBounds and ItemTransform attributes
// into an absolute coordinate box.
func Bounds(e *xmldoc.Element) (geom.Bounds, error) {
	bounds := geom.Bounds{}
	if s := e.SelectAttrValue("GeometricBounds", ""); s != "" {
		b, err := geom.ParseBounds(s)
		if err != nil {
			return geom.Bounds{}, err
		}
		bounds = b
	}
	transform := geom.IdentityTransform()
	if s := e.SelectAttrValue("ItemTransform", ""); s != "" {
		t, err := geom.ParseTransform(s)
		if err != nil {
			return geom.Bounds{}, err
		}
		transform = t
	}
	return geom.Coordinates(bounds, transform), nil
}

// Coordinates returns page's absolute coordinate box.
func Coordinates(page *xmldoc.Element) (geom.Bounds, error) { return Bounds(page) }

// IsRecto reports whether page lies on the recto side of its spread.
func IsRecto(page *xmldoc.Element) (bool, error) {
	b, err := Coordinates(page)
	if err != nil {
		return false, err
	}
	return geom.IsRecto(b.X1), nil
}

// PageFace returns RECTO or VERSO for page.
func PageFace(page *xmldoc.Element) (Face, error) {
	recto, err := IsRecto(page)
	if err != nil {
		return "", err
	}
	if recto {
		return Recto, nil
	}
	return Verso, nil
}

// PageItems returns every item in the spread whose coordinate box falls
// within page's box.
func (v *View) PageItems(page *xmldoc.Element) ([]*xmldoc.Element, error) {
	pageBounds, err := Coordinates(page)
	if err != nil {
		return nil, err
	}
	var out []*xmldoc.Element
	for _, item := range v.AllItems() {
		if !pageItemTags[item.Tag] {
			continue
		}
		itemBounds, err := Bounds(item)
		if err != nil {
			return nil, err
		}
		if geom.Contains(pageBounds, itemBounds) {
			out = append(out, item)
		}
	}
	return out, nil
}

// SetPageItems re-homes items so they geometrically belong to dest. An item
// whose box already lies within dest's box is left unchanged. Any other
// item keeps its place in the tree and its own GeometricBounds; only the X
// translation of its ItemTransform changes, so that its x1 equals dest's
// x1. Its Y position is not changed.
func (v *View) SetPageItems(items []*xmldoc.Element, dest *xmldoc.Element) error {
	destBounds, err := Coordinates(dest)
	if err != nil {
		return err
	}
	for _, item := range items {
		itemBounds, err := Bounds(item)
		if err != nil {
			return err
		}
		if geom.Contains(destBounds, itemBounds) {
			continue
		}
		dx := destBounds.X1.Sub(itemBounds.X1)
		if err := OffsetItemX(item, dx); err != nil {
			return err
		}
	}
	return nil
}

// OffsetItemX rewrites e's ItemTransform, adding dx to its X translation.
// Used both to re-home an item into a dest page's box and to re-offset a
// moved page (and its items) by a page-width so its face matches its new
// position (see splicer.AddPageFromIDML).
func OffsetItemX(e *xmldoc.Element, dx decimal.Decimal) error {
	transform := geom.IdentityTransform()
	if s := e.SelectAttrValue("ItemTransform", ""); s != "" {
		t, err := geom.ParseTransform(s)
		if err != nil {
			return err
		}
		transform = t
	}
	e.RemoveAttr("ItemTransform")
	e.CreateAttr("ItemTransform", transform.OffsetX(dx).String())
	return nil
}
