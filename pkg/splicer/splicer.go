// Package splicer grafts content from one IDML package (the donor) into
// another (the recipient): a structural subtree via InsertIDML, or whole
// pages via AddPageFromIDML/AddPagesFromIDML. Every operation first verifies
// the two packages' Self-token namespaces are disjoint, and copies each
// story part into the recipient before the recipient's designmap names it,
// so the designmap never references a story part that was not copied. The
// designmap is not the last part changed: spread edits and shared-resource
// merges can follow it, and a failure after the first change leaves the
// earlier changes in place.
package splicer

import (
	"fmt"
	"strings"

	"github.com/dimelords/idmlsplice/internal/ioerr"
	"github.com/dimelords/idmlsplice/pkg/geom"
	"github.com/dimelords/idmlsplice/pkg/partpath"
	"github.com/dimelords/idmlsplice/pkg/registry"
	"github.com/dimelords/idmlsplice/pkg/spread"
	"github.com/dimelords/idmlsplice/pkg/structure"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

// InsertIDML grafts the donor's structural subtree addressed by only into
// the recipient's empty slot addressed by at. Every story the fragment
// transitively references (including nested story-in-story references only
// visible once inlined) is imported; if the fragment itself carries a root
// XMLContent token, a freshly minted TextFrame anchors that story into the
// recipient's last spread so it is actually reachable from a page.
func InsertIDML(recipientReg, donorReg *registry.Registry, at, only string) error {
	if err := verifyDisjointTokens(recipientReg, donorReg); err != nil {
		return err
	}

	rawFragment, err := graftFragment(recipientReg, donorReg, at, only, true)
	if err != nil {
		return err
	}

	if root := rawFragment.SelectAttrValue(structure.XMLContentAttr, ""); root != "" && recipientReg.Archive().Has(partpath.Story(root)) {
		existing, err := allSelfTokens(recipientReg)
		if err != nil {
			return err
		}
		if err := anchorRootStory(recipientReg, root, newTokenMinter(existing)); err != nil {
			return err
		}
	}

	if err := mergeSharedResources(recipientReg, donorReg); err != nil {
		return err
	}

	if err := recipientReg.Flush(); err != nil {
		return err
	}
	recipientReg.Reset()
	return nil
}

// graftFragment resolves donor's only XPath and recipient's at XPath against
// their raw (un-inlined) structure roots, imports every story the fragment
// transitively references, copies the fragment under at, and records the
// imported stories in the recipient's designmap (StoryList plus idPkg:Story
// refs) — the shared "insert_idml step 2 onward" used by both InsertIDML
// and AddPageFromIDML. If requireEmptySlot is set, at must have no children
// and no XMLContent of its own (InsertIDML's stricter slot rule);
// AddPageFromIDML grafts by plain append instead.
func graftFragment(recipientReg, donorReg *registry.Registry, at, only string, requireEmptySlot bool) (*xmldoc.Element, error) {
	donorRawRoot, err := structure.RawStructureRoot(donorReg)
	if err != nil {
		return nil, err
	}
	rawFragment, err := structure.ResolvePath(donorRawRoot, only)
	if err != nil {
		return nil, err
	}

	recipientRawRoot, err := structure.RawStructureRoot(recipientReg)
	if err != nil {
		return nil, err
	}
	atNode, err := structure.ResolvePath(recipientRawRoot, at)
	if err != nil {
		return nil, err
	}
	if requireEmptySlot && (len(atNode.ChildElements()) > 0 || atNode.SelectAttrValue(structure.XMLContentAttr, "") != "") {
		return nil, ioerr.New("splicer", "graft fragment", at, ioerr.KindIncompatibleSlot,
			fmt.Errorf("slot is not empty"))
	}

	inlinedFragment, err := structure.InlineFragment(donorReg, rawFragment)
	if err != nil {
		return nil, err
	}
	tokens := structure.CollectXMLContentTokens(inlinedFragment)

	if err := importStories(recipientReg, donorReg, tokens); err != nil {
		return nil, err
	}

	atNode.AddChild(rawFragment.Copy())

	if err := appendStoryList(recipientReg, tokens); err != nil {
		return nil, err
	}
	return rawFragment, nil
}

// AddPageFromIDML moves donor's 1-based page pageNumber, together with its
// page items and the stories those items reference, into the recipient:
// appended onto the recipient's last spread if it has room for another
// page, or onto a freshly minted spread part otherwise. Its face (RECTO for
// odd target page numbers, VERSO for even) is established by re-offsetting
// the page and its items along X by a page-width when the donor page's own
// face doesn't already match. Finally, donor's structural subtree only is
// grafted under recipient at, as in InsertIDML's step 2 onward. Returns the
// moved page's Self token (unchanged — the prior disjoint-token check
// already guarantees it doesn't collide in the recipient).
func AddPageFromIDML(recipientReg, donorReg *registry.Registry, pageNumber int, at, only string) (string, error) {
	if err := verifyDisjointTokens(recipientReg, donorReg); err != nil {
		return "", err
	}

	donorSpreadPath, donorView, donorPage, err := findDonorPageByNumber(donorReg, pageNumber)
	if err != nil {
		return "", err
	}
	items, err := donorView.PageItems(donorPage)
	if err != nil {
		return "", err
	}
	donorPageSelf := donorPage.SelectAttrValue(xmldoc.SelfAttr, "")

	tokens := collectParentStoryTokens(append([]*xmldoc.Element{donorPage}, items...)...)
	if err := importStories(recipientReg, donorReg, tokens); err != nil {
		return "", err
	}
	if err := appendStoryList(recipientReg, tokens); err != nil {
		return "", err
	}

	targetView, err := recipientTargetSpread(recipientReg, donorSpreadPath, donorReg)
	if err != nil {
		return "", err
	}

	newPage := donorPage.Copy()
	newItems := make([]*xmldoc.Element, 0, len(items))
	for _, item := range items {
		newItems = append(newItems, item.Copy())
	}

	targetPageNumber, err := countPages(recipientReg)
	if err != nil {
		return "", err
	}
	targetPageNumber++
	if err := setPageFace(newPage, newItems, targetPageNumber); err != nil {
		return "", err
	}

	targetView.Root().AddChild(newPage)
	for _, c := range newItems {
		targetView.Root().AddChild(c)
	}
	if err := targetView.SetPageItems(newItems, newPage); err != nil {
		return "", err
	}
	targetView.Doc().Reindex()

	if _, err := graftFragment(recipientReg, donorReg, at, only, false); err != nil {
		return "", err
	}

	if err := mergeSharedResources(recipientReg, donorReg); err != nil {
		return "", err
	}

	if err := recipientReg.Flush(); err != nil {
		return "", err
	}
	recipientReg.Reset()
	return donorPageSelf, nil
}

// PageSpec names one AddPageFromIDML call within an AddPagesFromIDML batch.
type PageSpec struct {
	DonorReg   *registry.Registry
	PageNumber int
	At, Only   string
}

// AddPagesFromIDML applies AddPageFromIDML sequentially for each spec,
// stopping at the first error. It returns the Self tokens of every page
// successfully moved before that point.
func AddPagesFromIDML(recipientReg *registry.Registry, specs []PageSpec) ([]string, error) {
	moved := make([]string, 0, len(specs))
	for _, s := range specs {
		got, err := AddPageFromIDML(recipientReg, s.DonorReg, s.PageNumber, s.At, s.Only)
		if err != nil {
			return moved, err
		}
		moved = append(moved, got)
	}
	return moved, nil
}

// countPages returns the total number of pages across every spread in reg.
func countPages(reg *registry.Registry) (int, error) {
	paths, err := reg.Spreads()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, path := range paths {
		doc, err := reg.Doc(path)
		if err != nil {
			return 0, err
		}
		view, err := spread.New(doc)
		if err != nil {
			return 0, err
		}
		total += len(view.Pages())
	}
	return total, nil
}

// setPageFace re-offsets page and its items along X by ±page-width so the
// page's recto/verso face (x1 >= 0 for RECTO, x1 <= 0 for VERSO) matches the
// face its targetPageNumber implies (odd is RECTO), leaving it untouched if
// it already matches.
func setPageFace(page *xmldoc.Element, items []*xmldoc.Element, targetPageNumber int) error {
	bounds, err := spread.Coordinates(page)
	if err != nil {
		return err
	}
	wantRecto := targetPageNumber%2 == 1
	if geom.IsRecto(bounds.X1) == wantRecto {
		return nil
	}

	dx := bounds.X2.Sub(bounds.X1)
	if !wantRecto {
		dx = dx.Neg()
	}
	if err := spread.OffsetItemX(page, dx); err != nil {
		return err
	}
	for _, item := range items {
		if err := spread.OffsetItemX(item, dx); err != nil {
			return err
		}
	}
	return nil
}

// verifyDisjointTokens ensures recipientReg and donorReg share no Self
// token, per the splice precondition: composing two packages that both
// already use a token would make that token ambiguous.
func verifyDisjointTokens(recipientReg, donorReg *registry.Registry) error {
	recipientTokens, err := allSelfTokens(recipientReg)
	if err != nil {
		return err
	}
	donorTokens, err := allSelfTokens(donorReg)
	if err != nil {
		return err
	}
	for t := range donorTokens {
		if recipientTokens[t] {
			return ioerr.New("splicer", "verify disjoint tokens", t, ioerr.KindTokenCollision,
				fmt.Errorf("token %q is used by both packages", t))
		}
	}
	return nil
}

func allSelfTokens(reg *registry.Registry) (map[string]bool, error) {
	tokens := make(map[string]bool)
	for _, path := range reg.Archive().Paths() {
		if !strings.HasSuffix(path, partpath.ExtXML) {
			continue
		}
		doc, err := reg.Doc(path)
		if err != nil {
			continue
		}
		for _, t := range doc.AllSelfTokens() {
			tokens[t] = true
		}
	}
	return tokens, nil
}

// importStories copies every Stories/Story_<t>.xml part named in tokens
// from donorReg to recipientReg, verbatim (the disjoint-token check already
// guarantees no collision, so no rewrite is needed).
func importStories(recipientReg, donorReg *registry.Registry, tokens []string) error {
	for _, token := range tokens {
		storyPath := partpath.Story(token)
		if !donorReg.Archive().Has(storyPath) {
			continue
		}
		data, err := donorReg.Archive().Get(storyPath)
		if err != nil {
			return err
		}
		recipientReg.Archive().Set(storyPath, data)
	}
	return nil
}

// appendStoryList records tokens in the recipient designmap's StoryList
// attribute and adds a matching idPkg:Story reference for every token with
// an imported part, skipping tokens already present. Callers import the
// story parts before calling it, so the designmap never points at a story
// part that was not copied.
func appendStoryList(reg *registry.Registry, tokens []string) error {
	dm, err := reg.Designmap()
	if err != nil {
		return err
	}
	dmRoot := dm.Root()

	existing := strings.Fields(dmRoot.SelectAttrValue("StoryList", ""))
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t] = true
	}
	for _, t := range tokens {
		if !have[t] {
			existing = append(existing, t)
			have[t] = true
		}
	}
	dmRoot.RemoveAttr("StoryList")
	dmRoot.CreateAttr("StoryList", strings.Join(existing, " "))

	haveRef := make(map[string]bool)
	for _, c := range dmRoot.ChildElements() {
		if c.Tag != "Story" {
			continue
		}
		if token, ok := partpath.TokenOf(c.SelectAttrValue("src", "")); ok {
			haveRef[token] = true
		}
	}
	for _, t := range tokens {
		if haveRef[t] {
			continue
		}
		storyPath := partpath.Story(t)
		if !reg.Archive().Has(storyPath) {
			continue
		}
		ref := xmldoc.NewElement("Story")
		ref.Space = "idPkg"
		ref.CreateAttr("src", storyPath)
		dmRoot.AddChild(ref)
	}
	dm.Reindex()
	return nil
}

func appendSpreadRef(reg *registry.Registry, path string) error {
	dm, err := reg.Designmap()
	if err != nil {
		return err
	}
	dmRoot := dm.Root()
	for _, c := range dmRoot.ChildElements() {
		if c.Tag == "Spread" && c.SelectAttrValue("src", "") == path {
			return nil
		}
	}
	ref := xmldoc.NewElement("Spread")
	ref.Space = "idPkg"
	ref.CreateAttr("src", path)
	dmRoot.AddChild(ref)
	dm.Reindex()
	return nil
}

// anchorRootStory creates a minimally-geometried TextFrame referencing
// token via ParentStory and appends it to the recipient's last spread, so a
// grafted fragment's own story is actually reachable from a page rather
// than only existing as an unanchored part. The frame's Self token is
// freshly minted per the fresh-token rule: base "u" plus a counter that
// avoids every token already used by the recipient.
func anchorRootStory(reg *registry.Registry, token string, minter *tokenMinter) error {
	paths, err := reg.Spreads()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}
	lastPath := paths[len(paths)-1]
	doc, err := reg.Doc(lastPath)
	if err != nil {
		return err
	}
	view, err := spread.New(doc)
	if err != nil {
		return err
	}

	frame := xmldoc.NewElement("TextFrame")
	frame.CreateAttr(xmldoc.SelfAttr, minter.next("u"))
	frame.CreateAttr("ParentStory", token)
	frame.CreateAttr("GeometricBounds", "0 0 100 100")
	frame.CreateAttr("ItemTransform", geom.IdentityTransform().String())
	view.Root().AddChild(frame)
	doc.Reindex()
	return nil
}

// tokenMinter generates Self tokens disjoint from a known set, per the
// fresh-token rule: a fixed base prefix plus a monotonically increasing
// counter, advanced until the candidate is unused.
type tokenMinter struct {
	existing map[string]bool
	counter  int
}

func newTokenMinter(existing map[string]bool) *tokenMinter {
	return &tokenMinter{existing: existing}
}

func (m *tokenMinter) next(base string) string {
	for {
		m.counter++
		candidate := fmt.Sprintf("%s%d", base, m.counter)
		if !m.existing[candidate] {
			m.existing[candidate] = true
			return candidate
		}
	}
}

// findDonorPageByNumber returns reg's 1-based pageNumber-th page (counting
// across every spread in designmap order) and its enclosing spread.
func findDonorPageByNumber(reg *registry.Registry, pageNumber int) (string, *spread.View, *xmldoc.Element, error) {
	if pageNumber < 1 {
		return "", nil, nil, ioerr.Errorf("splicer", "add page from idml", "", ioerr.KindUnknownPath,
			"page number must be >= 1, got %d", pageNumber)
	}
	paths, err := reg.Spreads()
	if err != nil {
		return "", nil, nil, err
	}
	remaining := pageNumber
	for _, path := range paths {
		doc, err := reg.Doc(path)
		if err != nil {
			return "", nil, nil, err
		}
		view, err := spread.New(doc)
		if err != nil {
			return "", nil, nil, err
		}
		pages := view.Pages()
		if remaining <= len(pages) {
			return path, view, pages[remaining-1], nil
		}
		remaining -= len(pages)
	}
	return "", nil, nil, ioerr.Errorf("splicer", "add page from idml", "", ioerr.KindBrokenReference,
		"no such page number %d", pageNumber)
}

// collectParentStoryTokens returns every distinct ParentStory token found on
// nodes and their descendants, in document order.
func collectParentStoryTokens(nodes ...*xmldoc.Element) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(*xmldoc.Element)
	walk = func(e *xmldoc.Element) {
		if token := e.SelectAttrValue("ParentStory", ""); token != "" && !seen[token] {
			seen[token] = true
			out = append(out, token)
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}

// recipientTargetSpread returns the spread view a moved page should be
// appended to: the recipient's own last spread if it has fewer than two
// pages (InDesign's usual recto/verso spread convention), or a brand-new
// spread part otherwise, built by copying donorSpreadPath's root attributes
// so the new spread carries the same layout defaults. The new spread's Self
// is freshly minted, disjoint from every token of both packages.
func recipientTargetSpread(recipientReg *registry.Registry, donorSpreadPath string, donorReg *registry.Registry) (*spread.View, error) {
	paths, err := recipientReg.Spreads()
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		lastPath := paths[len(paths)-1]
		doc, err := recipientReg.Doc(lastPath)
		if err != nil {
			return nil, err
		}
		view, err := spread.New(doc)
		if err != nil {
			return nil, err
		}
		if len(view.Pages()) < 2 {
			return view, nil
		}
	}

	donorDoc, err := donorReg.Doc(donorSpreadPath)
	if err != nil {
		return nil, err
	}
	donorRoot := donorDoc.Root()

	newDoc := xmldoc.New("Spread")
	newRoot := newDoc.Root()
	for _, a := range donorRoot.Attr {
		if a.Key == xmldoc.SelfAttr {
			continue
		}
		newRoot.CreateAttr(a.Key, a.Value)
	}
	existing, err := allSelfTokens(recipientReg)
	if err != nil {
		return nil, err
	}
	donorTokens, err := allSelfTokens(donorReg)
	if err != nil {
		return nil, err
	}
	for t := range donorTokens {
		existing[t] = true
	}
	self := newTokenMinter(existing).next("u")
	newRoot.CreateAttr(xmldoc.SelfAttr, self)

	newPath := partpath.Spread(self)
	recipientReg.Put(newPath, newDoc)
	if err := appendSpreadRef(recipientReg, newPath); err != nil {
		return nil, err
	}

	return spread.New(newDoc)
}

// mergeSharedResources unions the five style-group roots, font families,
// graphics, and tags between donorReg and recipientReg by Self token,
// skipping any donor element whose Self the recipient already carries.
func mergeSharedResources(recipientReg, donorReg *registry.Registry) error {
	if err := mergeStyleGroups(recipientReg, donorReg); err != nil {
		return err
	}
	if err := mergeResourcePart(recipientReg, donorReg, partpath.Fonts); err != nil {
		return err
	}
	if err := mergeResourcePart(recipientReg, donorReg, partpath.Graphic); err != nil {
		return err
	}
	if err := mergeResourcePart(recipientReg, donorReg, partpath.Tags); err != nil {
		return err
	}
	return nil
}

func mergeStyleGroups(recipientReg, donorReg *registry.Registry) error {
	donorDoc, err := donorReg.StyleGroups()
	if err != nil {
		return err
	}
	if donorDoc == nil {
		return nil
	}
	recipientDoc, err := recipientReg.StyleGroups()
	if err != nil {
		return err
	}
	if recipientDoc == nil {
		recipientReg.Put(partpath.Styles, donorDoc)
		return nil
	}

	recipientRoot := recipientDoc.Root()
	donorRoot := donorDoc.Root()
	for _, groupTag := range registry.StyleGroupTags {
		donorGroup := firstChildByTag(donorRoot, groupTag)
		if donorGroup == nil {
			continue
		}
		recipientGroup := firstChildByTag(recipientRoot, groupTag)
		if recipientGroup == nil {
			recipientRoot.AddChild(donorGroup.Copy())
			continue
		}
		mergeChildrenBySelf(recipientGroup, donorGroup)
	}
	recipientDoc.Reindex()
	return nil
}

// mergeResourcePart unions path's top-level children between the two
// registries by Self token. If the recipient lacks path entirely, the
// donor's copy is adopted wholesale.
func mergeResourcePart(recipientReg, donorReg *registry.Registry, path string) error {
	if !donorReg.Archive().Has(path) {
		return nil
	}
	donorDoc, err := donorReg.Doc(path)
	if err != nil {
		return err
	}
	if !recipientReg.Archive().Has(path) {
		recipientReg.Put(path, donorDoc)
		return nil
	}
	recipientDoc, err := recipientReg.Doc(path)
	if err != nil {
		return err
	}
	mergeChildrenBySelf(recipientDoc.Root(), donorDoc.Root())
	recipientDoc.Reindex()
	return nil
}

func firstChildByTag(parent *xmldoc.Element, tag string) *xmldoc.Element {
	if parent == nil {
		return nil
	}
	for _, c := range parent.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func mergeChildrenBySelf(recipientParent, donorParent *xmldoc.Element) {
	have := make(map[string]bool)
	for _, c := range recipientParent.ChildElements() {
		if self := c.SelectAttrValue(xmldoc.SelfAttr, ""); self != "" {
			have[self] = true
		}
	}
	for _, c := range donorParent.ChildElements() {
		self := c.SelectAttrValue(xmldoc.SelfAttr, "")
		if self != "" && have[self] {
			continue
		}
		recipientParent.AddChild(c.Copy())
		if self != "" {
			have[self] = true
		}
	}
}
