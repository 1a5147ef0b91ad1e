package archive

import "testing"

func TestSetAndGet(t *testing.T) {
	a := New()
	a.Set("designmap.xml", []byte("<Document/>"))
	data, err := a.Get("designmap.xml")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "<Document/>" {
		t.Errorf("Get = %q, want %q", data, "<Document/>")
	}
}

func TestGetUnknownPath(t *testing.T) {
	a := New()
	if _, err := a.Get("nosuch.xml"); err == nil {
		t.Fatal("Get: want error for unknown path")
	}
}

func TestSetPreservesOrderAndAppendsNewPaths(t *testing.T) {
	a := New()
	a.Set("b.xml", []byte("b"))
	a.Set("a.xml", []byte("a"))
	a.Set("b.xml", []byte("b2"))

	if got, want := a.Paths(), []string{"b.xml", "a.xml"}; len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Paths = %v, want %v", got, want)
	}
	data, _ := a.Get("b.xml")
	if string(data) != "b2" {
		t.Errorf("Get after overwrite = %q, want %q", data, "b2")
	}
}

func TestDeleteRemovesFromIndexAndOrder(t *testing.T) {
	a := New()
	a.Set("a.xml", []byte("a"))
	a.Set("b.xml", []byte("b"))
	a.Delete("a.xml")

	if a.Has("a.xml") {
		t.Error("Has: want false after Delete")
	}
	if got := a.Paths(); len(got) != 1 || got[0] != "b.xml" {
		t.Errorf("Paths after delete = %v, want [b.xml]", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := New()
	a.Set("a.xml", []byte("a"))
	c := a.Clone()
	c.Set("a.xml", []byte("changed"))

	data, _ := a.Get("a.xml")
	if string(data) != "a" {
		t.Errorf("original mutated after clone was changed: got %q, want %q", data, "a")
	}
}

func TestToBytesRoundTrip(t *testing.T) {
	a := New()
	a.Set(MimetypeName, []byte("application/vnd.adobe.indesign-idml-package"))
	a.Set("designmap.xml", []byte("<Document/>"))

	data, err := a.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	roundtripped, err := FromBytes(data, ReadOptions{})
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	got, err := roundtripped.Get("designmap.xml")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "<Document/>" {
		t.Errorf("roundtripped designmap.xml = %q, want %q", got, "<Document/>")
	}
}
