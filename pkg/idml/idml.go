// Package idml is the public façade over the rest of this module: a
// Package opens an IDML archive once, lazily builds the views each
// operation needs, and exposes every package-level operation this engine
// supports.
package idml

import (
	"sync"

	"github.com/dimelords/idmlsplice/pkg/archive"
	"github.com/dimelords/idmlsplice/pkg/prefixer"
	"github.com/dimelords/idmlsplice/pkg/registry"
	"github.com/dimelords/idmlsplice/pkg/splicer"
	"github.com/dimelords/idmlsplice/pkg/story"
	"github.com/dimelords/idmlsplice/pkg/structure"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

// ReadOptions configures the ZIP-bomb defenses applied while opening a
// package. The zero value applies this engine's defaults.
type ReadOptions = archive.ReadOptions

// Package is one opened IDML working copy: its registry of parts plus a
// lazily built, cached StructureTree and item index.
type Package struct {
	reg *registry.Registry

	treeOnce sync.Once
	tree     *structure.Tree
	treeErr  error

	indexState itemIndexState
}

// Open reads the IDML package at path, applying this engine's default
// ZIP-bomb limits.
func Open(path string) (*Package, error) {
	return OpenWithOptions(path, ReadOptions{})
}

// OpenWithOptions reads the IDML package at path with caller-supplied
// bomb-protection limits.
func OpenWithOptions(path string, opts ReadOptions) (*Package, error) {
	arc, err := archive.FromPath(path, opts)
	if err != nil {
		return nil, err
	}
	return newPackage(arc)
}

// ReadBytes reads an IDML package already held in memory.
func ReadBytes(data []byte, opts ReadOptions) (*Package, error) {
	arc, err := archive.FromBytes(data, opts)
	if err != nil {
		return nil, err
	}
	return newPackage(arc)
}

func newPackage(arc *archive.Archive) (*Package, error) {
	reg, err := registry.New(arc)
	if err != nil {
		return nil, err
	}
	return &Package{reg: reg}, nil
}

// Close releases the package's working copy. It is a no-op for this
// engine's in-memory backing (no on-disk temp directory is created), kept
// for API symmetry so callers that defer pkg.Close() behave correctly
// against either backing.
func (p *Package) Close() error { return nil }

// Registry exposes the underlying part catalog for callers that need
// lower-level access than the façade provides.
func (p *Package) Registry() *registry.Registry { return p.reg }

// Spreads returns every Spreads/Spread_<token>.xml path, in designmap order.
func (p *Package) Spreads() ([]string, error) { return p.reg.Spreads() }

// Stories returns every Stories/Story_<token>.xml path, in StoryList order.
func (p *Package) Stories() ([]string, error) { return p.reg.Stories() }

// Tags returns the path to XML/Tags.xml, if present.
func (p *Package) Tags() (string, bool) { return p.reg.Tags() }

// FontFamilies returns every FontFamily Name in Resources/Fonts.xml.
func (p *Package) FontFamilies() ([]string, error) { return p.reg.FontFamilies() }

// StyleGroups returns the parsed Resources/Styles.xml document, if present.
func (p *Package) StyleGroups() (*xmldoc.Doc, error) { return p.reg.StyleGroups() }

// Graphics returns the parsed Resources/Graphic.xml document, if present.
func (p *Package) Graphics() (*xmldoc.Doc, error) { return p.reg.Graphics() }

// Namelist returns the path of every part in the package.
func (p *Package) Namelist() []string { return p.reg.Namelist() }

// structureTree lazily builds and caches the StructureTree.
func (p *Package) structureTree() (*structure.Tree, error) {
	p.treeOnce.Do(func() {
		p.tree, p.treeErr = structure.Build(p.reg)
	})
	return p.tree, p.treeErr
}

// XMLStructure returns the package's logical structure tree, exported as
// XML bytes.
func (p *Package) XMLStructure() ([]byte, error) {
	tree, err := p.structureTree()
	if err != nil {
		return nil, err
	}
	doc := xmldoc.New(tree.Root().Tag)
	doc.SetRoot(tree.Root())
	return doc.Serialize()
}

// GetStoryByXPath resolves xpath against the structure tree and returns the
// part path of the story governing the addressed element.
func (p *Package) GetStoryByXPath(xpath string) (string, error) {
	tree, err := p.structureTree()
	if err != nil {
		return "", err
	}
	return tree.ResolveStory(xpath)
}

// GetStoryObjectByID returns the story part path and element carrying
// Self=token.
func (p *Package) GetStoryObjectByID(token string) (string, *xmldoc.Element, error) {
	return structure.ByID(p.reg, token)
}

// GetSpreadObjectByID returns the spread part path and element carrying
// Self=token.
func (p *Package) GetSpreadObjectByID(token string) (string, *xmldoc.Element, error) {
	return structure.BySpreadID(p.reg, token)
}

// GetStoryContentByID returns the concatenated text content of the element
// carrying Self=token within whichever story part contains it.
func (p *Package) GetStoryContentByID(token string) (string, error) {
	storyPath, _, err := structure.ByID(p.reg, token)
	if err != nil {
		return "", err
	}
	doc, err := p.reg.Doc(storyPath)
	if err != nil {
		return "", err
	}
	view, err := story.New(doc)
	if err != nil {
		return "", err
	}
	content, _ := view.GetElementContentByID(token)
	return content, nil
}

// ExportXML renders the package's entire StructureTree back to XML: every
// leaf's body becomes the concatenated text runs of its referenced story,
// element tags are the markup names, and the internal Self/XMLContent
// attributes are omitted. This is the package's logical content view.
func (p *Package) ExportXML() ([]byte, error) {
	root, err := structure.Export(p.reg)
	if err != nil {
		return nil, err
	}
	doc := xmldoc.New(root.Tag)
	doc.SetRoot(root)
	return doc.Serialize()
}

// Prefix rewrites every identifier token in the package, prepending prefix.
func (p *Package) Prefix(prefix string) error {
	if err := prefixer.Prefix(p.reg, prefix); err != nil {
		return err
	}
	p.invalidateViews()
	return nil
}

// InsertIDML grafts donor's structural subtree addressed by only into this
// package's empty slot addressed by at.
func (p *Package) InsertIDML(donor *Package, at, only string) error {
	if err := splicer.InsertIDML(p.reg, donor.reg, at, only); err != nil {
		return err
	}
	p.invalidateViews()
	return nil
}

// AddPageFromIDML adds donor's 1-based page pageNumber as a new page in this
// package, then splices donor's structural subtree only under this
// package's at as in InsertIDML's step 2 onward. Returns the moved page's
// Self token.
func (p *Package) AddPageFromIDML(donor *Package, pageNumber int, at, only string) (string, error) {
	self, err := splicer.AddPageFromIDML(p.reg, donor.reg, pageNumber, at, only)
	if err != nil {
		return "", err
	}
	p.invalidateViews()
	return self, nil
}

// PageImport names one AddPageFromIDML call: a donor package, its 1-based
// page number, and the structural graft addresses.
type PageImport struct {
	Donor      *Package
	PageNumber int
	At, Only   string
}

// AddPagesFromIDML applies AddPageFromIDML sequentially for each entry in
// imports, in order, stopping at the first error.
func (p *Package) AddPagesFromIDML(imports []PageImport) ([]string, error) {
	specs := make([]splicer.PageSpec, len(imports))
	for i, im := range imports {
		specs[i] = splicer.PageSpec{
			DonorReg:   im.Donor.reg,
			PageNumber: im.PageNumber,
			At:         im.At,
			Only:       im.Only,
		}
	}
	moved, err := splicer.AddPagesFromIDML(p.reg, specs)
	p.invalidateViews()
	return moved, err
}

// invalidateViews drops every cache a structural mutation invalidates: the
// StructureTree and the item index.
func (p *Package) invalidateViews() {
	p.treeOnce = sync.Once{}
	p.tree, p.treeErr = nil, nil
	p.indexState = itemIndexState{}
}

// Save flushes every pending document edit and serializes the package back
// into ZIP bytes.
func (p *Package) Save() ([]byte, error) {
	if err := p.reg.Flush(); err != nil {
		return nil, err
	}
	return p.reg.Archive().ToBytes()
}

// SaveToPath flushes and writes the package to path.
func (p *Package) SaveToPath(path string) error {
	if err := p.reg.Flush(); err != nil {
		return err
	}
	return p.reg.Archive().WriteToPath(path)
}

// Extractall writes every part to dir, preserving relative paths.
func (p *Package) Extractall(dir string) error {
	return extractall(p.reg.Archive(), dir)
}

// ItemIndex returns the package's Self→spread-item index, built lazily and
// exactly once per Package instance (sync.Once, matching the single-package,
// single-goroutine concurrency model: not a defense against concurrent
// mutation, only against redundant rebuilds of the same cache).
func (p *Package) ItemIndex() (*ItemIndex, error) {
	p.indexState.once.Do(func() {
		p.indexState.index, p.indexState.err = buildItemIndex(p.reg)
	})
	return p.indexState.index, p.indexState.err
}

