// Package xmlmeta extracts and restores the XML declaration and leading
// processing instructions that sit outside the element tree proper, so a
// generic document engine (pkg/xmldoc) can round-trip them without needing
// a typed schema for every part.
package xmlmeta

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/dimelords/idmlsplice/internal/ioerr"
)

// ProcessingInstruction is a leading "<?target inst?>" node, e.g. the IDML
// "<?aid style="50" ... ?>" hint that precedes the root element.
type ProcessingInstruction struct {
	Target string
	Inst   string
}

// Metadata holds everything about a document that lives outside its element
// tree: the declaration and any processing instructions preceding the root.
type Metadata struct {
	// Declaration is the raw content between "<?xml" and "?>", e.g.
	// `version='1.0' encoding='UTF-8' standalone='yes'`. Empty means "use
	// the default declaration on serialize".
	Declaration string
	// ProcessingInstructions are the PIs found between the declaration and
	// the root element, in document order.
	ProcessingInstructions []ProcessingInstruction
}

// DefaultDeclaration matches the single-quoted form IDML packages ship.
const DefaultDeclaration = `version='1.0' encoding='UTF-8' standalone='yes'`

var (
	xmlDeclRe = regexp.MustCompile(`<\?xml\s+([^?]*)\?>`)
	piRe      = regexp.MustCompile(`<\?(\w+)\s+([^?]*)\?>`)
)

// Extract pulls the declaration and any leading PIs out of raw document
// bytes, and returns the remaining bytes (starting at the root element)
// alongside the extracted Metadata.
func Extract(data []byte) ([]byte, *Metadata, error) {
	if len(data) == 0 {
		return nil, nil, ioerr.Errorf("xmlmeta", "extract", "", ioerr.KindMalformedPackage, "document is empty")
	}

	meta := &Metadata{}
	rest := data

	if m := xmlDeclRe.FindSubmatchIndex(rest); m != nil && m[0] == 0 {
		meta.Declaration = strings.TrimSpace(string(rest[m[2]:m[3]]))
		rest = rest[m[1]:]
	}

	for {
		rest = bytes.TrimLeft(rest, " \t\r\n")
		m := piRe.FindSubmatchIndex(rest)
		if m == nil || m[0] != 0 {
			break
		}
		target := string(rest[m[2]:m[3]])
		if target == "xml" {
			break
		}
		inst := strings.TrimRight(string(rest[m[4]:m[5]]), " \t")
		meta.ProcessingInstructions = append(meta.ProcessingInstructions, ProcessingInstruction{Target: target, Inst: inst})
		rest = rest[m[1]:]
	}

	return bytes.TrimLeft(rest, " \t\r\n"), meta, nil
}

// Render writes the declaration (or the IDML default, single-quoted) and any
// processing instructions ahead of body, which must already hold the
// serialized element tree.
func Render(meta *Metadata, body []byte) []byte {
	var buf bytes.Buffer

	buf.WriteString("<?xml ")
	if meta != nil && meta.Declaration != "" {
		buf.WriteString(meta.Declaration)
	} else {
		buf.WriteString(DefaultDeclaration)
	}
	buf.WriteString("?>\n")

	if meta != nil {
		for _, pi := range meta.ProcessingInstructions {
			buf.WriteString("<?")
			buf.WriteString(pi.Target)
			buf.WriteByte(' ')
			buf.WriteString(pi.Inst)
			buf.WriteString(" ?>\n")
		}
	}

	buf.Write(body)
	return buf.Bytes()
}
