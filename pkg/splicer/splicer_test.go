package splicer

import (
	"strings"
	"testing"

	"github.com/dimelords/idmlsplice/pkg/archive"
	"github.com/dimelords/idmlsplice/pkg/partpath"
	"github.com/dimelords/idmlsplice/pkg/registry"
	"github.com/dimelords/idmlsplice/pkg/spread"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

const idPkgNS = `xmlns:idPkg="http://ns.adobe.com/AdobeInDesign/idml/1.0/packaging"`

func newRecipient(t *testing.T) *registry.Registry {
	t.Helper()
	arc := archive.New()
	arc.Set(partpath.Designmap, []byte(`<Document `+idPkgNS+` Self="rd" StoryList="ruBacking">
		<idPkg:Spread src="Spreads/Spread_rub1.xml"/>
		<Root Self="rdi2">
			<article Self="rdi2i1"></article>
		</Root>
	</Document>`))
	arc.Set(partpath.Spread("rub1"), []byte(`<Spread Self="rub1"><Page Self="rub1i1" GeometricBounds="0 0 100 50" ItemTransform="1 0 0 1 0 0"/></Spread>`))
	reg, err := registry.New(arc)
	if err != nil {
		t.Fatalf("registry.New recipient: %v", err)
	}
	return reg
}

func newDonor(t *testing.T) *registry.Registry {
	t.Helper()
	arc := archive.New()
	arc.Set(partpath.Designmap, []byte(`<Document `+idPkgNS+` Self="dd" StoryList="du1 duBacking">
		<idPkg:Story src="Stories/Story_du1.xml"/>
		<idPkg:Spread src="Spreads/Spread_dub1.xml"/>
		<Root Self="ddi2">
			<module Self="ddi2i1" XMLContent="du1"></module>
		</Root>
	</Document>`))
	arc.Set(partpath.Story("du1"), []byte(`<Story Self="du1"><title Self="du1i1">Body</title></Story>`))
	arc.Set(partpath.Spread("dub1"), []byte(`<Spread Self="dub1">`+
		`<Page Self="dub1i1" GeometricBounds="0 0 100 50" ItemTransform="1 0 0 1 0 0"/>`+
		`<TextFrame Self="dub1i2" ParentStory="du1" GeometricBounds="0 0 10 10" ItemTransform="1 0 0 1 5 5"/>`+
		`</Spread>`))
	reg, err := registry.New(arc)
	if err != nil {
		t.Fatalf("registry.New donor: %v", err)
	}
	return reg
}

func TestInsertIDMLGraftsFragmentAndImportsStory(t *testing.T) {
	recipientReg := newRecipient(t)
	donorReg := newDonor(t)

	if err := InsertIDML(recipientReg, donorReg, "/Root/article[1]", "/Root/module[1]"); err != nil {
		t.Fatalf("InsertIDML: %v", err)
	}

	if !recipientReg.Archive().Has(partpath.Story("du1")) {
		t.Error("want Stories/Story_du1.xml imported into recipient")
	}

	dmRoot, err := recipientReg.DesignmapRoot()
	if err != nil {
		t.Fatalf("DesignmapRoot: %v", err)
	}
	storyList := dmRoot.SelectAttrValue("StoryList", "")
	if !strings.Contains(storyList, "du1") {
		t.Errorf("StoryList = %q, want it to contain du1", storyList)
	}

	var foundRef bool
	for _, c := range dmRoot.ChildElements() {
		if c.Tag == "Story" && c.SelectAttrValue("src", "") == partpath.Story("du1") {
			foundRef = true
		}
	}
	if !foundRef {
		t.Error("want idPkg:Story ref for the imported story")
	}

	var articleEl *xmldoc.Element
	for _, root := range dmRoot.ChildElements() {
		if root.Tag != "Root" {
			continue
		}
		for _, c := range root.ChildElements() {
			if c.Tag == "article" {
				articleEl = c
			}
		}
	}
	if articleEl == nil {
		t.Fatal("want to find the article element in the recipient designmap")
	}
	var module *xmldoc.Element
	for _, c := range articleEl.ChildElements() {
		if c.Tag == "module" {
			module = c
		}
	}
	if module == nil {
		t.Fatal("want the donor module grafted under article")
	}
	if got := module.SelectAttrValue("XMLContent", ""); got != "du1" {
		t.Errorf("grafted module XMLContent = %q, want du1", got)
	}

	spreadPaths, err := recipientReg.Spreads()
	if err != nil {
		t.Fatalf("Spreads: %v", err)
	}
	lastSpreadDoc, err := recipientReg.Doc(spreadPaths[len(spreadPaths)-1])
	if err != nil {
		t.Fatalf("Doc: %v", err)
	}
	var anchored bool
	for _, c := range lastSpreadDoc.Root().ChildElements() {
		if c.Tag == "TextFrame" && c.SelectAttrValue("ParentStory", "") == "du1" {
			anchored = true
		}
	}
	if !anchored {
		t.Error("want a TextFrame anchoring the imported story in the last recipient spread")
	}
}

func TestAddPageFromIDMLMovesPageAndItems(t *testing.T) {
	recipientReg := newRecipient(t)
	donorReg := newDonor(t)

	moved, err := AddPageFromIDML(recipientReg, donorReg, 1, "/Root", "/Root/module[1]")
	if err != nil {
		t.Fatalf("AddPageFromIDML: %v", err)
	}
	if moved != "dub1i1" {
		t.Errorf("moved = %q, want dub1i1", moved)
	}

	if !recipientReg.Archive().Has(partpath.Story("du1")) {
		t.Error("want the moved page's story imported into recipient")
	}

	spreadPaths, err := recipientReg.Spreads()
	if err != nil {
		t.Fatalf("Spreads: %v", err)
	}
	lastDoc, err := recipientReg.Doc(spreadPaths[len(spreadPaths)-1])
	if err != nil {
		t.Fatalf("Doc: %v", err)
	}
	if _, ok := lastDoc.FindBySelf("dub1i1"); !ok {
		t.Error("want moved page present in recipient's last spread")
	}
	if _, ok := lastDoc.FindBySelf("dub1i2"); !ok {
		t.Error("want moved page's item present in recipient's last spread")
	}

	dmRoot, err := recipientReg.DesignmapRoot()
	if err != nil {
		t.Fatalf("DesignmapRoot: %v", err)
	}
	var grafted *xmldoc.Element
	for _, root := range dmRoot.ChildElements() {
		if root.Tag != "Root" {
			continue
		}
		for _, c := range root.ChildElements() {
			if c.Tag == "module" {
				grafted = c
			}
		}
	}
	if grafted == nil {
		t.Fatal("want the donor module grafted under the recipient structure root")
	}
}

func TestAddPageFromIDMLSetsFaceFromTargetPosition(t *testing.T) {
	recipientReg := newRecipient(t)
	donorReg := newDonor(t)

	// The recipient's sole existing page (rub1i1) makes the moved page the
	// 2nd overall, so it must come out VERSO (x1 <= 0) even though the donor
	// page itself is RECTO (x1 = 0 >= 0).
	if _, err := AddPageFromIDML(recipientReg, donorReg, 1, "/Root", "/Root/module[1]"); err != nil {
		t.Fatalf("AddPageFromIDML: %v", err)
	}

	spreadPaths, err := recipientReg.Spreads()
	if err != nil {
		t.Fatalf("Spreads: %v", err)
	}
	lastDoc, err := recipientReg.Doc(spreadPaths[len(spreadPaths)-1])
	if err != nil {
		t.Fatalf("Doc: %v", err)
	}
	movedPage, ok := lastDoc.FindBySelf("dub1i1")
	if !ok {
		t.Fatal("want moved page present")
	}
	recto, err := spread.IsRecto(movedPage)
	if err != nil {
		t.Fatalf("IsRecto: %v", err)
	}
	if recto {
		t.Error("want moved page VERSO as the 2nd recipient page, got RECTO")
	}

	movedItem, ok := lastDoc.FindBySelf("dub1i2")
	if !ok {
		t.Fatal("want moved page's item present")
	}
	itemBounds, err := spread.Bounds(movedItem)
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if itemBounds.X1.Sign() > 0 {
		t.Errorf("want moved item re-offset alongside its page, X1 = %s", itemBounds.X1)
	}
}

func TestAddPagesFromIDMLAppliesSequentially(t *testing.T) {
	recipientReg := newRecipient(t)
	donorReg := newDonor(t)

	moved, err := AddPagesFromIDML(recipientReg, []PageSpec{
		{DonorReg: donorReg, PageNumber: 1, At: "/Root", Only: "/Root/module[1]"},
	})
	if err != nil {
		t.Fatalf("AddPagesFromIDML: %v", err)
	}
	if len(moved) != 1 || moved[0] != "dub1i1" {
		t.Errorf("moved = %v, want [dub1i1]", moved)
	}
}

func TestInsertIDMLRejectsTokenCollision(t *testing.T) {
	recipientReg := newRecipient(t)
	donorReg := newDonor(t)

	colliding := archive.New()
	colliding.Set(partpath.Designmap, []byte(`<Document `+idPkgNS+` Self="rdi2" StoryList=""><Root Self="z1"></Root></Document>`))
	collidingReg, err := registry.New(colliding)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	err = InsertIDML(recipientReg, collidingReg, "/Root/article[1]", "/Root[1]")
	if err == nil {
		t.Fatal("InsertIDML: want token collision error")
	}

	_ = donorReg
}
