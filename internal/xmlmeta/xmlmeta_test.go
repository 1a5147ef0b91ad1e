package xmlmeta

import (
	"bytes"
	"testing"
)

func TestExtractDeclarationAndPI(t *testing.T) {
	input := []byte(`<?xml version='1.0' encoding='UTF-8' standalone='yes'?>
<?aid style="50" type="document" ?>
<Document Self="d"></Document>`)

	body, meta, err := Extract(input)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.Declaration != DefaultDeclaration {
		t.Errorf("Declaration = %q, want %q", meta.Declaration, DefaultDeclaration)
	}
	if len(meta.ProcessingInstructions) != 1 || meta.ProcessingInstructions[0].Target != "aid" {
		t.Fatalf("ProcessingInstructions = %+v, want one aid PI", meta.ProcessingInstructions)
	}
	if !bytes.HasPrefix(body, []byte("<Document")) {
		t.Errorf("body = %q, want to start with <Document", body)
	}
}

func TestExtractRejectsEmptyInput(t *testing.T) {
	if _, _, err := Extract(nil); err == nil {
		t.Fatal("Extract: want error for empty input")
	}
}

func TestExtractWithoutDeclarationOrPI(t *testing.T) {
	body, meta, err := Extract([]byte(`<Document Self="d"></Document>`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.Declaration != "" {
		t.Errorf("Declaration = %q, want empty", meta.Declaration)
	}
	if len(meta.ProcessingInstructions) != 0 {
		t.Errorf("ProcessingInstructions = %+v, want none", meta.ProcessingInstructions)
	}
	if !bytes.HasPrefix(body, []byte("<Document")) {
		t.Errorf("body = %q, want to start with <Document", body)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	meta := &Metadata{
		Declaration:            `version='1.0' encoding='UTF-8' standalone='yes'`,
		ProcessingInstructions: []ProcessingInstruction{{Target: "aid", Inst: `style="50"`}},
	}
	out := Render(meta, []byte("<Document/>"))

	body, gotMeta, err := Extract(out)
	if err != nil {
		t.Fatalf("Extract(Render(...)): %v", err)
	}
	if gotMeta.Declaration != meta.Declaration {
		t.Errorf("round-tripped Declaration = %q, want %q", gotMeta.Declaration, meta.Declaration)
	}
	if len(gotMeta.ProcessingInstructions) != 1 || gotMeta.ProcessingInstructions[0].Inst != `style="50"` {
		t.Errorf("round-tripped PIs = %+v", gotMeta.ProcessingInstructions)
	}
	if string(body) != "<Document/>" {
		t.Errorf("round-tripped body = %q, want %q", body, "<Document/>")
	}
}

func TestRenderUsesDefaultDeclarationWhenEmpty(t *testing.T) {
	out := Render(&Metadata{}, []byte("<Document/>"))
	if !bytes.Contains(out, []byte(DefaultDeclaration)) {
		t.Errorf("Render output = %q, want it to contain default declaration %q", out, DefaultDeclaration)
	}
}
