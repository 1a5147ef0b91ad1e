package idml

import (
	"strings"
	"testing"

	"github.com/dimelords/idmlsplice/pkg/archive"
	"github.com/dimelords/idmlsplice/pkg/partpath"
)

const idPkgNS = `xmlns:idPkg="http://ns.adobe.com/AdobeInDesign/idml/1.0/packaging"`

func newTestPackage(t *testing.T) *Package {
	t.Helper()
	arc := archive.New()
	arc.Set(partpath.Mimetype, []byte("application/vnd.adobe.indesign-idml-package"))
	arc.Set(partpath.Designmap, []byte(`<Document `+idPkgNS+` Self="d" StoryList="u1 uBacking">
		<idPkg:Story src="Stories/Story_u1.xml"/>
		<idPkg:Spread src="Spreads/Spread_ub6.xml"/>
		<Root Self="di2">
			<article Self="di2i1" XMLContent="u1"></article>
		</Root>
	</Document>`))
	arc.Set(partpath.Story("u1"), []byte(`<Story Self="u1"><title Self="u1i1">Hello</title></Story>`))
	arc.Set(partpath.Spread("ub6"), []byte(`<Spread Self="ub6">`+
		`<Page Self="ub6i1" GeometricBounds="0 0 100 100" ItemTransform="1 0 0 1 0 0"/>`+
		`<TextFrame Self="ub6i2" ParentStory="u1" GeometricBounds="0 10 10 20" ItemTransform="1 0 0 1 0 0"/>`+
		`</Spread>`))
	pkg, err := newPackage(arc)
	if err != nil {
		t.Fatalf("newPackage: %v", err)
	}
	return pkg
}

func newDonorPackage(t *testing.T) *Package {
	t.Helper()
	arc := archive.New()
	arc.Set(partpath.Mimetype, []byte("application/vnd.adobe.indesign-idml-package"))
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
	pkg, err := newPackage(arc)
	if err != nil {
		t.Fatalf("newPackage: %v", err)
	}
	return pkg
}

func TestSpreadsStoriesAndTags(t *testing.T) {
	pkg := newTestPackage(t)
	spreads, err := pkg.Spreads()
	if err != nil {
		t.Fatalf("Spreads: %v", err)
	}
	if len(spreads) != 1 || spreads[0] != partpath.Spread("ub6") {
		t.Errorf("Spreads = %v", spreads)
	}

	stories, err := pkg.Stories()
	if err != nil {
		t.Fatalf("Stories: %v", err)
	}
	if len(stories) != 1 || stories[0] != partpath.Story("u1") {
		t.Errorf("Stories = %v", stories)
	}
}

func TestGetStoryByXPathAndExportXML(t *testing.T) {
	pkg := newTestPackage(t)

	storyPath, err := pkg.GetStoryByXPath("/Root/article[1]/title[1]")
	if err != nil {
		t.Fatalf("GetStoryByXPath: %v", err)
	}
	if storyPath != partpath.Story("u1") {
		t.Errorf("GetStoryByXPath = %q, want %q", storyPath, partpath.Story("u1"))
	}

	out, err := pkg.ExportXML()
	if err != nil {
		t.Fatalf("ExportXML: %v", err)
	}
	got := string(out)
	if !strings.Contains(got, "<article>Hello</article>") {
		t.Errorf("ExportXML = %s, want the referenced story's text inlined as <article>Hello</article>", got)
	}
	if strings.Contains(got, "Self=") || strings.Contains(got, "XMLContent=") {
		t.Errorf("ExportXML = %s, want Self/XMLContent attributes omitted", got)
	}
}

func TestGetStoryContentByID(t *testing.T) {
	pkg := newTestPackage(t)

	content, err := pkg.GetStoryContentByID("u1i1")
	if err != nil {
		t.Fatalf("GetStoryContentByID: %v", err)
	}
	if content != "Hello" {
		t.Errorf("GetStoryContentByID = %q, want %q", content, "Hello")
	}
}

func TestXMLStructureInlinesStory(t *testing.T) {
	pkg := newTestPackage(t)
	out, err := pkg.XMLStructure()
	if err != nil {
		t.Fatalf("XMLStructure: %v", err)
	}
	if !strings.Contains(string(out), "<title") || !strings.Contains(string(out), "Hello") {
		t.Errorf("XMLStructure = %s, want it to contain the inlined title/Hello", out)
	}
}

func TestPrefixInvalidatesStructureTree(t *testing.T) {
	pkg := newTestPackage(t)
	if _, err := pkg.structureTree(); err != nil {
		t.Fatalf("structureTree: %v", err)
	}
	if err := pkg.Prefix("FOO"); err != nil {
		t.Fatalf("Prefix: %v", err)
	}

	stories, err := pkg.Stories()
	if err != nil {
		t.Fatalf("Stories: %v", err)
	}
	if len(stories) != 1 || stories[0] != partpath.Story("FOOu1") {
		t.Errorf("Stories after Prefix = %v, want [%s]", stories, partpath.Story("FOOu1"))
	}

	out, err := pkg.ExportXML()
	if err != nil {
		t.Fatalf("ExportXML after Prefix: %v", err)
	}
	if !strings.Contains(string(out), "<article>Hello</article>") {
		t.Errorf("ExportXML after Prefix = %s, want <article>Hello</article>", out)
	}
}

func TestItemIndexLookup(t *testing.T) {
	pkg := newTestPackage(t)
	idx, err := pkg.ItemIndex()
	if err != nil {
		t.Fatalf("ItemIndex: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("ItemIndex.Len() = %d, want 1", idx.Len())
	}
	item, ok := idx.Lookup("ub6i2")
	if !ok || item.Tag != "TextFrame" {
		t.Errorf("Lookup(ub6i2) = (%v, %v), want a TextFrame", item, ok)
	}
	page, ok := idx.Page("ub6i2")
	if !ok || page.SelectAttrValue("Self", "") != "ub6i1" {
		t.Errorf("Page(ub6i2) = (%v, %v), want ub6i1", page, ok)
	}
}

func newEmptySlotPackage(t *testing.T) *Package {
	t.Helper()
	arc := archive.New()
	arc.Set(partpath.Mimetype, []byte("application/vnd.adobe.indesign-idml-package"))
	arc.Set(partpath.Designmap, []byte(`<Document `+idPkgNS+` Self="rd" StoryList="ruBacking">
		<idPkg:Spread src="Spreads/Spread_rub1.xml"/>
		<Root Self="rdi2">
			<article Self="rdi2i1"></article>
		</Root>
	</Document>`))
	arc.Set(partpath.Spread("rub1"), []byte(`<Spread Self="rub1"><Page Self="rub1i1" GeometricBounds="0 0 100 50" ItemTransform="1 0 0 1 0 0"/></Spread>`))
	pkg, err := newPackage(arc)
	if err != nil {
		t.Fatalf("newPackage: %v", err)
	}
	return pkg
}

func TestInsertIDMLThroughFacade(t *testing.T) {
	recipient := newEmptySlotPackage(t)
	donor := newDonorPackage(t)

	if err := recipient.InsertIDML(donor, "/Root/article[1]", "/Root/module[1]"); err != nil {
		t.Fatalf("InsertIDML: %v", err)
	}

	stories, err := recipient.Stories()
	if err != nil {
		t.Fatalf("Stories: %v", err)
	}
	found := false
	for _, s := range stories {
		if s == partpath.Story("du1") {
			found = true
		}
	}
	if !found {
		t.Errorf("Stories = %v, want it to contain the imported du1 story", stories)
	}
}

func TestAddPageFromIDMLThroughFacade(t *testing.T) {
	recipient := newTestPackage(t)
	donor := newDonorPackage(t)

	moved, err := recipient.AddPageFromIDML(donor, 1, "/Root", "/Root/module[1]")
	if err != nil {
		t.Fatalf("AddPageFromIDML: %v", err)
	}
	if moved != "dub1i1" {
		t.Errorf("moved = %q, want dub1i1", moved)
	}

	idx, err := recipient.ItemIndex()
	if err != nil {
		t.Fatalf("ItemIndex: %v", err)
	}
	if _, ok := idx.Lookup("dub1i2"); !ok {
		t.Error("want the moved page's item present in the recipient's item index")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	pkg := newTestPackage(t)
	if err := pkg.Prefix("FOO"); err != nil {
		t.Fatalf("Prefix: %v", err)
	}

	data, err := pkg.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := ReadBytes(data, ReadOptions{})
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	stories, err := reopened.Stories()
	if err != nil {
		t.Fatalf("Stories: %v", err)
	}
	if len(stories) != 1 || stories[0] != partpath.Story("FOOu1") {
		t.Errorf("reopened Stories = %v, want [%s]", stories, partpath.Story("FOOu1"))
	}
}

func TestCloseIsNoOp(t *testing.T) {
	pkg := newTestPackage(t)
	if err := pkg.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
