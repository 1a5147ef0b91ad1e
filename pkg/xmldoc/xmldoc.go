// Package xmldoc wraps a generic XML element tree (beevik/etree) with the
// declaration/processing-instruction preservation IDML parts need, and a
// Self-token index for O(1) element lookup.
//
// Unlike the typed encoding/xml structs a single fixed schema would need,
// etree lets every part — designmap, story, spread, any future part this
// engine has never seen a schema for — be read, walked, and rewritten
// generically by element and attribute name.
package xmldoc

import (
	"github.com/beevik/etree"

	"github.com/dimelords/idmlsplice/internal/ioerr"
	"github.com/dimelords/idmlsplice/internal/xmlmeta"
)

// SelfAttr is the attribute IDML uses to carry an element's package-unique
// identifier.
const SelfAttr = "Self"

// Doc is a parsed XML part: its element tree plus the declaration/PI
// metadata that must survive a round trip.
type Doc struct {
	doc  *etree.Document
	meta *xmlmeta.Metadata

	bySelf map[string]*etree.Element
}

// Parse reads data into a Doc, recognizing the same declaration style IDML
// parts use (typically single-quoted, standalone="yes").
func Parse(data []byte) (*Doc, error) {
	body, meta, err := xmlmeta.Extract(data)
	if err != nil {
		return nil, err
	}

	etreeDoc := etree.NewDocument()
	if err := etreeDoc.ReadFromBytes(body); err != nil {
		return nil, ioerr.New("xmldoc", "parse", "", ioerr.KindMalformedPackage, err)
	}

	d := &Doc{doc: etreeDoc, meta: meta}
	d.reindex()
	return d, nil
}

// reindex rebuilds the Self-token index. Call after structural mutation.
func (d *Doc) reindex() {
	d.bySelf = make(map[string]*etree.Element)
	if d.doc.Root() == nil {
		return
	}
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if self := e.SelectAttrValue(SelfAttr, ""); self != "" {
			d.bySelf[self] = e
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(d.doc.Root())
}

// Reindex re-scans the tree for Self tokens. Callers that mutate the tree
// directly via Root() must call this before the next FindBySelf.
func (d *Doc) Reindex() { d.reindex() }

// Root returns the document's root element.
func (d *Doc) Root() *etree.Element { return d.doc.Root() }

// SetRoot replaces the document's root element with root and reindexes.
// Used to wrap an element produced by another package (e.g. an exported
// structure tree) as a standalone, serializable document.
func (d *Doc) SetRoot(root *etree.Element) {
	d.doc.SetRoot(root)
	d.reindex()
}

// Element is an alias so callers don't need to import etree directly for
// the common case of walking a tree this package already parsed.
type Element = etree.Element

// NewElement creates a detached element named tag, for callers building or
// cloning structure outside of any single Doc's tree.
func NewElement(tag string) *Element { return etree.NewElement(tag) }

// FindBySelf returns the element carrying Self=token, if any.
func (d *Doc) FindBySelf(token string) (*etree.Element, bool) {
	e, ok := d.bySelf[token]
	return e, ok
}

// AllSelfTokens returns every Self token present in the document.
func (d *Doc) AllSelfTokens() []string {
	out := make([]string, 0, len(d.bySelf))
	for k := range d.bySelf {
		out = append(out, k)
	}
	return out
}

// Metadata returns the declaration/PI metadata parsed alongside the tree.
func (d *Doc) Metadata() *xmlmeta.Metadata { return d.meta }

// SetMetadata replaces the declaration/PI metadata used on Serialize.
func (d *Doc) SetMetadata(meta *xmlmeta.Metadata) { d.meta = meta }

// Serialize renders the document back to bytes, restoring the original
// declaration and processing instructions ahead of the (indented) tree.
func (d *Doc) Serialize() ([]byte, error) {
	d.doc.Indent(2)
	body, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, ioerr.New("xmldoc", "serialize", "", ioerr.KindIOFailure, err)
	}
	return xmlmeta.Render(d.meta, body), nil
}

// Clone returns a deep, independent copy of the document including a fresh
// Self-token index.
func (d *Doc) Clone() (*Doc, error) {
	etreeDoc := etree.NewDocument()
	if d.doc.Root() != nil {
		etreeDoc.SetRoot(d.doc.Root().Copy())
	}
	metaCopy := *d.meta
	metaCopy.ProcessingInstructions = append([]xmlmeta.ProcessingInstruction(nil), d.meta.ProcessingInstructions...)
	c := &Doc{doc: etreeDoc, meta: &metaCopy}
	c.reindex()
	return c, nil
}

// New builds an empty Doc with a single root element named rootTag, using
// the default IDML-style declaration.
func New(rootTag string) *Doc {
	etreeDoc := etree.NewDocument()
	etreeDoc.CreateElement(rootTag)
	d := &Doc{doc: etreeDoc, meta: &xmlmeta.Metadata{Declaration: xmlmeta.DefaultDeclaration}}
	d.reindex()
	return d
}
