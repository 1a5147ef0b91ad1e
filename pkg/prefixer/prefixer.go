// Package prefixer implements the identifier-rewrite pass that makes an
// IDML package safely composable with another by prepending a literal
// prefix to every token in its package-local identifier namespace.
package prefixer

import (
	"strings"

	"github.com/dimelords/idmlsplice/pkg/partpath"
	"github.com/dimelords/idmlsplice/pkg/registry"
	"github.com/dimelords/idmlsplice/pkg/xmldoc"
)

// bareTokenAttrs are attributes whose entire value is a single identifier
// token, replaced wholesale by prefix+value.
var bareTokenAttrs = map[string]bool{
	"Self":                  true,
	"XMLContent":            true,
	"ParentStory":           true,
	"AppliedCharacterStyle": true,
	"AppliedParagraphStyle": true,
	"AppliedObjectStyle":    true,
	"AppliedCellStyle":      true,
	"AppliedTableStyle":     true,
}

// Prefix rewrites every identifier token across every part of reg's
// package by prepending prefix, including renaming Stories/ and Spreads/
// part files to match their elements' new Self tokens. An empty prefix is
// a no-op, matching §8's `prefix("") == identity` property.
func Prefix(reg *registry.Registry, prefix string) error {
	if prefix == "" {
		return nil
	}

	for _, path := range reg.Archive().Paths() {
		if !strings.HasSuffix(path, ".xml") {
			continue
		}
		doc, err := reg.Doc(path)
		if err != nil {
			// Parts this registry doesn't recognize as XML, or that failed
			// to parse, are left untouched; only designmap is required.
			continue
		}
		root := doc.Root()
		if root == nil {
			continue
		}
		walkAndPrefix(root, prefix)
		doc.Reindex()
	}

	if err := reg.Flush(); err != nil {
		return err
	}

	if err := renamePrefixedParts(reg, partpath.PrefixStories, partpath.Story, prefix); err != nil {
		return err
	}
	if err := renamePrefixedParts(reg, partpath.PrefixSpreads, partpath.Spread, prefix); err != nil {
		return err
	}
	if err := renamePrefixedParts(reg, partpath.PrefixMasterSpreads, partpath.MasterSpread, prefix); err != nil {
		return err
	}

	reg.Reset()
	return nil
}

func walkAndPrefix(e *xmldoc.Element, prefix string) {
	for i := range e.Attr {
		a := &e.Attr[i]
		switch {
		case bareTokenAttrs[a.Key]:
			a.Value = prefix + a.Value
		case a.Key == "StoryList":
			a.Value = prefixTokenList(a.Value, prefix)
		case a.Key == "MarkupTag":
			if !strings.HasPrefix(a.Value, "XMLTag/") {
				a.Value = prefix + a.Value
			}
		case a.Key == "src" && e.Space == "idPkg" && (e.Tag == "Story" || e.Tag == "Spread"):
			a.Value = prefixPartSrc(a.Value, prefix)
		}
	}
	for _, c := range e.ChildElements() {
		walkAndPrefix(c, prefix)
	}
}

func prefixTokenList(value, prefix string) string {
	fields := strings.Fields(value)
	for i, f := range fields {
		fields[i] = prefix + f
	}
	return strings.Join(fields, " ")
}

// prefixPartSrc rewrites a Stories/Story_<t>.xml or Spreads/Spread_<t>.xml
// src reference so its embedded token carries the new prefix.
func prefixPartSrc(value, prefix string) string {
	token, ok := partpath.TokenOf(value)
	if !ok {
		return value
	}
	switch {
	case partpath.IsStory(value):
		return partpath.Story(prefix + token)
	case partpath.IsSpread(value):
		return partpath.Spread(prefix + token)
	case partpath.IsMasterSpread(value):
		return partpath.MasterSpread(prefix + token)
	default:
		return value
	}
}

// renamePrefixedParts renames every archive part under dirPrefix whose
// filename encodes a token, to the path its now-prefixed Self would build.
func renamePrefixedParts(reg *registry.Registry, dirPrefix string, build func(string) string, prefix string) error {
	arc := reg.Archive()
	for _, path := range arc.Paths() {
		if !strings.HasPrefix(path, dirPrefix) {
			continue
		}
		token, ok := partpath.TokenOf(path)
		if !ok {
			continue
		}
		newPath := build(prefix + token)
		if newPath == path {
			continue
		}
		data, err := arc.Get(path)
		if err != nil {
			return err
		}
		arc.Delete(path)
		arc.Set(newPath, data)
	}
	return nil
}
