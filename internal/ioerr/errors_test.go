package ioerr

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New("structure", "resolve", "/Root/article[1]", KindBrokenReference, nil)

	if !errors.Is(err, ErrBrokenReference) {
		t.Error("errors.Is: want match against ErrBrokenReference")
	}
	if errors.Is(err, ErrTokenCollision) {
		t.Error("errors.Is: want no match against ErrTokenCollision")
	}
	if !IsBrokenReference(err) {
		t.Error("IsBrokenReference: want true")
	}
	if IsTokenCollision(err) {
		t.Error("IsTokenCollision: want false")
	}
}

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := New("archive", "get", "mimetype", KindIOFailure, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is: want match against wrapped cause")
	}
	if !errors.Is(err, ErrIOFailure) {
		t.Error("errors.Is: want match against ErrIOFailure sentinel even though Err is set")
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := New("prefixer", "prefix", "Stories/Story_u1.xml", KindMalformedPackage, nil)
	msg := err.Error()
	for _, want := range []string{"prefixer", "prefix", "Stories/Story_u1.xml", "malformed package"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}
