package idml

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractallWritesEveryPart(t *testing.T) {
	pkg := newTestPackage(t)
	dir := t.TempDir()

	if err := pkg.Extractall(dir); err != nil {
		t.Fatalf("Extractall: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "designmap.xml"))
	if err != nil {
		t.Fatalf("ReadFile designmap.xml: %v", err)
	}
	if len(data) == 0 {
		t.Error("designmap.xml written empty")
	}

	data, err = os.ReadFile(filepath.Join(dir, "Stories", "Story_u1.xml"))
	if err != nil {
		t.Fatalf("ReadFile Stories/Story_u1.xml: %v", err)
	}
	if len(data) == 0 {
		t.Error("Stories/Story_u1.xml written empty")
	}
}
