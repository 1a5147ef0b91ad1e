// Package structure builds and navigates the StructureTree: the logical XML
// tree obtained by inlining every story referenced from the designmap's
// embedded structural root.
package structure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dimelords/idmlsplice/internal/ioerr"
	"github.com/dimelords/idmlsplice/pkg/partpath"
	"github.com/dimelords/idmlsplice/pkg/registry"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

// XMLContentAttr is the attribute linking a structural node to the story
// part whose content it carries.
const XMLContentAttr = "XMLContent"

// Tree is an eagerly materialized, indexed copy of the package's logical
// structure. It is a view, not a live proxy: once built it does not track
// further mutation of the underlying registry, matching the "tree of trees"
// design note — splice/prefix operations rebuild it when they need a fresh
// view.
type Tree struct {
	reg  *registry.Registry
	root *xmldoc.Element
}

// findRootElement locates the designmap's embedded structural root: the
// first element (depth-first) tagged "Root".
func findRootElement(e *xmldoc.Element) *xmldoc.Element {
	if e.Tag == "Root" {
		return e
	}
	for _, c := range e.ChildElements() {
		if r := findRootElement(c); r != nil {
			return r
		}
	}
	return nil
}

// Build assembles the StructureTree from reg's designmap by recursively
// inlining every XMLContent reference, detecting reference cycles as
// BrokenReference per the design notes.
func Build(reg *registry.Registry) (*Tree, error) {
	dmRoot, err := reg.DesignmapRoot()
	if err != nil {
		return nil, err
	}

	structRoot := findRootElement(dmRoot)
	if structRoot == nil {
		return nil, ioerr.New("structure", "build", partpath.Designmap, ioerr.KindMalformedPackage,
			fmt.Errorf("designmap has no embedded structural root"))
	}

	inlined := structRoot.Copy()
	if err := inlineInto(reg, inlined, make(map[string]bool)); err != nil {
		return nil, err
	}

	return &Tree{reg: reg, root: inlined}, nil
}

func inlineInto(reg *registry.Registry, node *xmldoc.Element, visiting map[string]bool) error {
	token := node.SelectAttrValue(XMLContentAttr, "")
	if token != "" {
		if visiting[token] {
			return ioerr.New("structure", "build", token, ioerr.KindBrokenReference,
				fmt.Errorf("cycle detected through XMLContent=%s", token))
		}
		storyPath := partpath.Story(token)
		if reg.Archive().Has(storyPath) {
			storyDoc, err := reg.Doc(storyPath)
			if err != nil {
				return err
			}
			storyRoot := storyDoc.Root()
			if storyRoot == nil {
				return ioerr.New("structure", "build", storyPath, ioerr.KindMalformedPackage, nil)
			}
			visiting[token] = true
			for _, c := range storyRoot.ChildElements() {
				node.AddChild(c.Copy())
			}
			delete(visiting, token)
		}
	}

	for _, c := range node.ChildElements() {
		if err := inlineInto(reg, c, visiting); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the inlined structural root element.
func (t *Tree) Root() *xmldoc.Element { return t.root }

// RawStructureRoot returns reg's designmap-embedded structural root exactly
// as stored — no story inlining applied. Splice grafts operate at this raw
// level: a graft target's shallow "at"/"only" addressing only ever needs to
// reach the designmap's own direct structure, never content that only
// appears after inlining.
func RawStructureRoot(reg *registry.Registry) (*xmldoc.Element, error) {
	dmRoot, err := reg.DesignmapRoot()
	if err != nil {
		return nil, err
	}
	structRoot := findRootElement(dmRoot)
	if structRoot == nil {
		return nil, ioerr.New("structure", "raw root", partpath.Designmap, ioerr.KindMalformedPackage,
			fmt.Errorf("designmap has no embedded structural root"))
	}
	return structRoot, nil
}

// ResolvePath walks an absolute XPath-lite expression from root (which need
// not be a Tree's inlined root — RawStructureRoot works equally well) and
// returns the element it addresses.
func ResolvePath(root *xmldoc.Element, xpath string) (*xmldoc.Element, error) {
	segments, err := parsePath(xpath)
	if err != nil {
		return nil, err
	}
	if segments[0].tag != root.Tag {
		return nil, ioerr.Errorf("structure", "resolve path", xpath, ioerr.KindUnknownPath, "root segment %q does not match root %q", segments[0].tag, root.Tag)
	}
	current := root
	for _, seg := range segments[1:] {
		next, ok := nthChildByTag(current, seg.tag, seg.index)
		if !ok {
			return nil, ioerr.Errorf("structure", "resolve path", xpath, ioerr.KindUnknownPath, "no such element at segment %q", seg.tag)
		}
		current = next
	}
	return current, nil
}

// InlineFragment returns a detached, deep-inlined copy of raw: raw itself
// plus, recursively, every story its subtree references via XMLContent. It
// does not mutate raw or reg. Used to discover the full transitive set of
// story tokens a splice fragment depends on, since a raw (un-inlined)
// fragment may reference further nested stories only visible once inlined.
func InlineFragment(reg *registry.Registry, raw *xmldoc.Element) (*xmldoc.Element, error) {
	clone := raw.Copy()
	if err := inlineInto(reg, clone, make(map[string]bool)); err != nil {
		return nil, err
	}
	return clone, nil
}

// CollectXMLContentTokens walks e and its descendants, returning every
// distinct XMLContent token encountered, in document order.
func CollectXMLContentTokens(e *xmldoc.Element) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(*xmldoc.Element)
	walk = func(el *xmldoc.Element) {
		if token := el.SelectAttrValue(XMLContentAttr, ""); token != "" && !seen[token] {
			seen[token] = true
			out = append(out, token)
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	walk(e)
	return out
}

// pathSegment is one parsed "/Tag[n]" step of an XPath-lite expression.
type pathSegment struct {
	tag   string
	index int // 1-based; defaults to 1
}

func parsePath(xpath string) ([]pathSegment, error) {
	xpath = strings.TrimSpace(xpath)
	if !strings.HasPrefix(xpath, "/") {
		return nil, ioerr.Errorf("structure", "parse path", xpath, ioerr.KindUnknownPath, "path must be absolute")
	}
	parts := strings.Split(strings.TrimPrefix(xpath, "/"), "/")
	segments := make([]pathSegment, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		seg := pathSegment{tag: p, index: 1}
		if i := strings.IndexByte(p, '['); i >= 0 && strings.HasSuffix(p, "]") {
			seg.tag = p[:i]
			n, err := strconv.Atoi(p[i+1 : len(p)-1])
			if err != nil || n < 1 {
				return nil, ioerr.Errorf("structure", "parse path", xpath, ioerr.KindUnknownPath, "invalid index in segment %q", p)
			}
			seg.index = n
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, ioerr.Errorf("structure", "parse path", xpath, ioerr.KindUnknownPath, "empty path")
	}
	return segments, nil
}

// nthChildByTag returns the index-th (1-based) child of parent tagged tag.
func nthChildByTag(parent *xmldoc.Element, tag string, index int) (*xmldoc.Element, bool) {
	n := 0
	for _, c := range parent.ChildElements() {
		if c.Tag != tag {
			continue
		}
		n++
		if n == index {
			return c, true
		}
	}
	return nil, false
}

// Resolve walks an absolute XPath-lite expression from the structure root
// and returns the element it addresses.
func (t *Tree) Resolve(xpath string) (*xmldoc.Element, error) {
	segments, err := parsePath(xpath)
	if err != nil {
		return nil, err
	}
	if segments[0].tag != t.root.Tag {
		return nil, ioerr.Errorf("structure", "resolve", xpath, ioerr.KindUnknownPath, "root segment %q does not match structure root %q", segments[0].tag, t.root.Tag)
	}
	current := t.root
	for _, seg := range segments[1:] {
		next, ok := nthChildByTag(current, seg.tag, seg.index)
		if !ok {
			return nil, ioerr.Errorf("structure", "resolve", xpath, ioerr.KindUnknownPath, "no such element at segment %q", seg.tag)
		}
		current = next
	}
	return current, nil
}

// ResolveStory returns the part path of the story governing the XPath's
// target element: the nearest XMLContent token found on a strict ancestor
// of the target (the root itself counts as an ancestor; the target's own
// XMLContent is not consulted). With no governing ancestor, the designated
// backing story is returned.
func (t *Tree) ResolveStory(xpath string) (string, error) {
	segments, err := parsePath(xpath)
	if err != nil {
		return "", err
	}
	if segments[0].tag != t.root.Tag {
		return "", ioerr.Errorf("structure", "resolve story", xpath, ioerr.KindUnknownPath, "root segment %q does not match structure root %q", segments[0].tag, t.root.Tag)
	}

	current := t.root
	story := partpath.BackingStory
	if token := current.SelectAttrValue(XMLContentAttr, ""); token != "" {
		story = partpath.Story(token)
	}

	// Walk every ancestor strictly before the target (i.e. all segments
	// except the last), updating story whenever that ancestor carries
	// XMLContent.
	var ancestors []pathSegment
	if len(segments) > 1 {
		ancestors = segments[1 : len(segments)-1]
	}
	for _, seg := range ancestors {
		next, ok := nthChildByTag(current, seg.tag, seg.index)
		if !ok {
			return "", ioerr.Errorf("structure", "resolve story", xpath, ioerr.KindUnknownPath, "no such element at segment %q", seg.tag)
		}
		current = next
		if token := current.SelectAttrValue(XMLContentAttr, ""); token != "" {
			story = partpath.Story(token)
		}
	}

	// Verify the final (target) segment actually exists, without consulting
	// its own XMLContent.
	if len(segments) > 1 {
		last := segments[len(segments)-1]
		if _, ok := nthChildByTag(current, last.tag, last.index); !ok {
			return "", ioerr.Errorf("structure", "resolve story", xpath, ioerr.KindUnknownPath, "no such element at segment %q", last.tag)
		}
	}

	return story, nil
}

// ByID looks up the element with the given Self token among every story
// part, returning the owning part path alongside the element.
func ByID(reg *registry.Registry, token string) (string, *xmldoc.Element, error) {
	stories, err := reg.Stories()
	if err != nil {
		return "", nil, err
	}
	for _, path := range stories {
		doc, err := reg.Doc(path)
		if err != nil {
			return "", nil, err
		}
		if e, ok := doc.FindBySelf(token); ok {
			return path, e, nil
		}
	}
	return "", nil, ioerr.New("structure", "get story object by id", token, ioerr.KindBrokenReference, nil)
}

// Export renders reg's StructureTree as the "logical content view": every
// leaf's body becomes the concatenated text runs of its referenced story (or
// empty if unreferenced), element tags are the markup names, and the
// internal Self/XMLContent attributes are omitted.
func Export(reg *registry.Registry) (*xmldoc.Element, error) {
	structRoot, err := RawStructureRoot(reg)
	if err != nil {
		return nil, err
	}
	return exportNode(reg, structRoot)
}

// exportNode renders node (and, if it carries XMLContent, its referenced
// story's content) into a bare element carrying only node's tag.
func exportNode(reg *registry.Registry, node *xmldoc.Element) (*xmldoc.Element, error) {
	out := xmldoc.NewElement(node.Tag)
	for _, c := range node.ChildElements() {
		childOut, err := exportNode(reg, c)
		if err != nil {
			return nil, err
		}
		out.AddChild(childOut)
	}

	token := node.SelectAttrValue(XMLContentAttr, "")
	if token == "" {
		return out, nil
	}
	storyPath := partpath.Story(token)
	if !reg.Archive().Has(storyPath) {
		return out, nil
	}
	doc, err := reg.Doc(storyPath)
	if err != nil {
		return nil, err
	}
	storyRoot := doc.Root()
	if storyRoot == nil {
		return out, nil
	}

	text, markupChildren := splitStoryContent(storyRoot)
	out.SetText(out.Text() + text)
	for _, mk := range markupChildren {
		mkOut, err := exportNode(reg, mk)
		if err != nil {
			return nil, err
		}
		out.AddChild(mkOut)
	}
	return out, nil
}

// splitStoryContent walks root's descendants, concatenating every text run
// that does not lie within a nested XMLContent-bearing element (a
// story-in-story markup boundary); those boundary elements are returned
// separately so the caller can render them as nested markup children
// instead of flattening their text into the parent.
func splitStoryContent(root *xmldoc.Element) (string, []*xmldoc.Element) {
	var b strings.Builder
	var markup []*xmldoc.Element
	b.WriteString(root.Text())
	for _, c := range root.ChildElements() {
		collectStoryText(c, &b, &markup)
		b.WriteString(c.Tail())
	}
	return b.String(), markup
}

func collectStoryText(e *xmldoc.Element, b *strings.Builder, markup *[]*xmldoc.Element) {
	if e.SelectAttrValue(XMLContentAttr, "") != "" {
		*markup = append(*markup, e)
		return
	}
	b.WriteString(e.Text())
	for _, c := range e.ChildElements() {
		collectStoryText(c, b, markup)
		b.WriteString(c.Tail())
	}
}

// BySpreadID looks up the element with the given Self token among every
// spread part.
func BySpreadID(reg *registry.Registry, token string) (string, *xmldoc.Element, error) {
	spreads, err := reg.Spreads()
	if err != nil {
		return "", nil, err
	}
	for _, path := range spreads {
		doc, err := reg.Doc(path)
		if err != nil {
			return "", nil, err
		}
		if e, ok := doc.FindBySelf(token); ok {
			return path, e, nil
		}
	}
	return "", nil, ioerr.New("structure", "get spread object by id", token, ioerr.KindBrokenReference, nil)
}
