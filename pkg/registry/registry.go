// Package registry catalogs the named parts of an IDML package by category,
// in the order the designmap declares them.
package registry

import (
	"strings"

	"github.com/dimelords/idmlsplice/internal/ioerr"
	"github.com/dimelords/idmlsplice/pkg/archive"
	"github.com/dimelords/idmlsplice/pkg/partpath"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

// idPkgNamespace is the namespace IDML uses for the designmap's story/spread
// entries.
const idPkgNamespace = "http://ns.adobe.com/AdobeInDesign/idml/1.0/packaging"

// StyleGroupTags lists the tags of the five style-group roots that
// Resources/Styles.xml carries.
var StyleGroupTags = []string{
	"RootCharacterStyleGroup",
	"RootParagraphStyleGroup",
	"RootCellStyleGroup",
	"RootTableStyleGroup",
	"RootObjectStyleGroup",
}

// Registry is the lazily-parsed catalog over one archive's parts. Parsed
// documents are cached by path so repeated lookups don't re-parse XML.
type Registry struct {
	arc *archive.Archive

	docs map[string]*xmldoc.Doc
}

// New builds a Registry over arc. The designmap is parsed eagerly since
// every other operation depends on it (mirrors the teacher's
// validateDesignMap-on-read rule).
func New(arc *archive.Archive) (*Registry, error) {
	r := &Registry{arc: arc, docs: make(map[string]*xmldoc.Doc)}
	if _, err := r.Designmap(); err != nil {
		return nil, err
	}
	return r, nil
}

// Archive returns the underlying working copy.
func (r *Registry) Archive() *archive.Archive { return r.arc }

// Doc returns the parsed document at path, parsing and caching it on first
// access.
func (r *Registry) Doc(path string) (*xmldoc.Doc, error) {
	if d, ok := r.docs[path]; ok {
		return d, nil
	}
	data, err := r.arc.Get(path)
	if err != nil {
		return nil, ioerr.New("registry", "doc", path, ioerr.KindUnknownPath, err)
	}
	doc, err := xmldoc.Parse(data)
	if err != nil {
		return nil, ioerr.New("registry", "doc", path, ioerr.KindMalformedPackage, err)
	}
	r.docs[path] = doc
	return doc, nil
}

// Invalidate drops path's cached document, forcing a re-parse on next Doc
// call. Used after a lower layer rewrites the archive bytes directly.
func (r *Registry) Invalidate(path string) { delete(r.docs, path) }

// Reset drops every cached document, forcing a re-parse on next access.
// Used after a bulk rewrite (prefixing, splicing) changes which paths exist
// or what they contain out from under the cache.
func (r *Registry) Reset() { r.docs = make(map[string]*xmldoc.Doc) }

// Put registers doc as path's cached document, creating a placeholder
// archive entry if path doesn't exist yet. Used when a splice introduces a
// brand-new part that has no serialized bytes until the next Flush.
func (r *Registry) Put(path string, doc *xmldoc.Doc) {
	if !r.arc.Has(path) {
		r.arc.Set(path, nil)
	}
	r.docs[path] = doc
}

// Flush re-serializes every cached, still-live document back into the
// archive. Called before the package writes itself out.
func (r *Registry) Flush() error {
	for path, doc := range r.docs {
		data, err := doc.Serialize()
		if err != nil {
			return ioerr.New("registry", "flush", path, ioerr.KindIOFailure, err)
		}
		r.arc.Set(path, data)
	}
	return nil
}

// Designmap returns the parsed designmap.xml document.
func (r *Registry) Designmap() (*xmldoc.Doc, error) {
	if !r.arc.Has(partpath.Designmap) {
		return nil, ioerr.New("registry", "designmap", partpath.Designmap, ioerr.KindMalformedPackage, nil)
	}
	return r.Doc(partpath.Designmap)
}

// DesignmapRoot returns the <Document> root element of designmap.xml.
func (r *Registry) DesignmapRoot() (*xmldoc.Element, error) {
	dm, err := r.Designmap()
	if err != nil {
		return nil, err
	}
	root := dm.Root()
	if root == nil {
		return nil, ioerr.New("registry", "designmap", partpath.Designmap, ioerr.KindMalformedPackage, nil)
	}
	return root, nil
}

// idPkgRefs returns the src attribute of every direct child of the designmap
// root whose tag matches tag and whose namespace is idPkg.
func (r *Registry) idPkgRefs(tag string) ([]string, error) {
	root, err := r.DesignmapRoot()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range root.ChildElements() {
		if c.Tag != tag {
			continue
		}
		if c.Space != "" && c.Space != "idPkg" {
			continue
		}
		if src := c.SelectAttrValue("src", ""); src != "" {
			out = append(out, src)
		}
	}
	return out, nil
}

// Spreads returns every Spreads/Spread_<token>.xml path, in the designmap's
// idPkg:Spread declaration order.
func (r *Registry) Spreads() ([]string, error) { return r.idPkgRefs("Spread") }

// Stories returns every Stories/Story_<token>.xml path. Per §4.1, order
// follows the textual StoryList, mapped onto the matching idPkg:Story src
// entries — not the idPkg:Story declaration order itself, since StoryList
// may list the backing-story token that has no corresponding part.
func (r *Registry) Stories() ([]string, error) {
	root, err := r.DesignmapRoot()
	if err != nil {
		return nil, err
	}
	storyList := strings.Fields(root.SelectAttrValue("StoryList", ""))

	refs, err := r.idPkgRefs("Story")
	if err != nil {
		return nil, err
	}
	byToken := make(map[string]string, len(refs))
	for _, ref := range refs {
		if token, ok := partpath.TokenOf(ref); ok {
			byToken[token] = ref
		}
	}

	out := make([]string, 0, len(storyList))
	for _, token := range storyList {
		if path, ok := byToken[token]; ok {
			out = append(out, path)
		}
	}
	return out, nil
}

// StoryListTokens returns the designmap's raw StoryList tokens, including
// tokens with no corresponding Story_<t>.xml part (e.g. the backing story).
func (r *Registry) StoryListTokens() ([]string, error) {
	root, err := r.DesignmapRoot()
	if err != nil {
		return nil, err
	}
	return strings.Fields(root.SelectAttrValue("StoryList", "")), nil
}

// Tags returns the path to XML/Tags.xml if present.
func (r *Registry) Tags() (string, bool) {
	if r.arc.Has(partpath.Tags) {
		return partpath.Tags, true
	}
	return "", false
}

// FontFamilies returns the Name attribute of every FontFamily element in
// Resources/Fonts.xml, in document order.
func (r *Registry) FontFamilies() ([]string, error) {
	if !r.arc.Has(partpath.Fonts) {
		return nil, nil
	}
	doc, err := r.Doc(partpath.Fonts)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}
	var out []string
	for _, c := range root.ChildElements() {
		if c.Tag != "FontFamily" {
			continue
		}
		if name := c.SelectAttrValue("Name", ""); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

// StyleGroups returns the parsed Resources/Styles.xml document, if present.
func (r *Registry) StyleGroups() (*xmldoc.Doc, error) {
	if !r.arc.Has(partpath.Styles) {
		return nil, nil
	}
	return r.Doc(partpath.Styles)
}

// Graphics returns the parsed Resources/Graphic.xml document, if present.
func (r *Registry) Graphics() (*xmldoc.Doc, error) {
	if !r.arc.Has(partpath.Graphic) {
		return nil, nil
	}
	return r.Doc(partpath.Graphic)
}

// Namelist returns every part path currently in the archive, in archive
// order. The archive is the working copy itself, so there is no separate
// source list to differ from; after a mutation such as prefixing renames
// parts, the list shows the new paths.
func (r *Registry) Namelist() []string { return r.arc.Paths() }
