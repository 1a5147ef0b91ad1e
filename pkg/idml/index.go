package idml

import (
	"sync"

	"github.com/dimelords/idmlsplice/pkg/registry"
	"github.com/dimelords/idmlsplice/pkg/spread"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

// ItemIndex is an O(1) Self→page-item lookup across every spread in a
// package, built lazily once per Package instance.
type ItemIndex struct {
	items map[string]*xmldoc.Element
	page  map[string]*xmldoc.Element // item Self -> owning page element
}

// Lookup returns the page item carrying Self=token, if indexed.
func (idx *ItemIndex) Lookup(token string) (*xmldoc.Element, bool) {
	e, ok := idx.items[token]
	return e, ok
}

// Page returns the page element that owns the item carrying Self=token.
func (idx *ItemIndex) Page(token string) (*xmldoc.Element, bool) {
	e, ok := idx.page[token]
	return e, ok
}

// Len returns the number of indexed items.
func (idx *ItemIndex) Len() int { return len(idx.items) }

type itemIndexState struct {
	index *ItemIndex
	once  sync.Once
	err   error
}

// buildItemIndex walks every spread's pages and items, populating the
// index. Grounded on the teacher's buildItemIndex, generalized from typed
// per-kind maps to one generic Self→element map since this engine's spreads
// are untyped etree trees rather than fixed Go structs.
func buildItemIndex(reg *registry.Registry) (*ItemIndex, error) {
	idx := &ItemIndex{
		items: make(map[string]*xmldoc.Element),
		page:  make(map[string]*xmldoc.Element),
	}

	paths, err := reg.Spreads()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		doc, err := reg.Doc(path)
		if err != nil {
			return nil, err
		}
		view, err := spread.New(doc)
		if err != nil {
			return nil, err
		}
		for _, page := range view.Pages() {
			items, err := view.PageItems(page)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				if self := item.SelectAttrValue(xmldoc.SelfAttr, ""); self != "" {
					idx.items[self] = item
					idx.page[self] = page
				}
			}
		}
	}
	return idx, nil
}
