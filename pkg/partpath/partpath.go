// Package partpath defines IDML's fixed folder conventions and the path
// builders and predicates used to recognize a part's category from its path.
package partpath

import "strings"

// Root-level and fixed-name parts.
const (
	Mimetype  = "mimetype"
	Designmap = "designmap.xml"

	Fonts       = "Resources/Fonts.xml"
	Styles      = "Resources/Styles.xml"
	Graphic     = "Resources/Graphic.xml"
	Preferences = "Resources/Preferences.xml"

	Container    = "META-INF/container.xml"
	Tags         = "XML/Tags.xml"
	BackingStory = "XML/BackingStory.xml"
)

// Directory prefixes, with trailing slash.
const (
	PrefixStories       = "Stories/"
	PrefixSpreads       = "Spreads/"
	PrefixMasterSpreads = "MasterSpreads/"
	PrefixResources     = "Resources/"
	PrefixMetaInf       = "META-INF/"
	PrefixXML           = "XML/"

	ExtXML = ".xml"
)

// Story returns the conventional path for a story identified by token id.
func Story(id string) string { return PrefixStories + "Story_" + id + ExtXML }

// Spread returns the conventional path for a spread identified by token id.
func Spread(id string) string { return PrefixSpreads + "Spread_" + id + ExtXML }

// MasterSpread returns the conventional path for a master spread.
func MasterSpread(id string) string { return PrefixMasterSpreads + "MasterSpread_" + id + ExtXML }

func hasDirPrefix(path, prefix string) bool {
	return len(path) > len(prefix) && path[:len(prefix)] == prefix && strings.HasSuffix(path, ExtXML)
}

// IsStory reports whether path names a story part.
func IsStory(path string) bool { return hasDirPrefix(path, PrefixStories) }

// IsSpread reports whether path names a spread part.
func IsSpread(path string) bool { return hasDirPrefix(path, PrefixSpreads) }

// IsMasterSpread reports whether path names a master spread part.
func IsMasterSpread(path string) bool { return hasDirPrefix(path, PrefixMasterSpreads) }

// IsResource reports whether path is under Resources/.
func IsResource(path string) bool { return hasDirPrefix(path, PrefixResources) }

// IsMetaInf reports whether path is under META-INF/.
func IsMetaInf(path string) bool {
	return len(path) > len(PrefixMetaInf) && path[:len(PrefixMetaInf)] == PrefixMetaInf
}

// IsXML reports whether path is under XML/ (tags, backing story).
func IsXML(path string) bool {
	return len(path) > len(PrefixXML) && path[:len(PrefixXML)] == PrefixXML
}

// TokenOf extracts the token id embedded in a conventional Story/Spread/
// MasterSpread path, e.g. TokenOf("Stories/Story_u102.xml") == "u102". The
// second return is false if path doesn't match a recognized convention.
func TokenOf(path string) (string, bool) {
	for _, prefix := range []string{PrefixStories + "Story_", PrefixSpreads + "Spread_", PrefixMasterSpreads + "MasterSpread_"} {
		if strings.HasPrefix(path, prefix) && strings.HasSuffix(path, ExtXML) {
			return strings.TrimSuffix(strings.TrimPrefix(path, prefix), ExtXML), true
		}
	}
	return "", false
}
