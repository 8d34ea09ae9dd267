package printer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var codePages = map[string]*charmap.Charmap{
	"cp437":      charmap.CodePage437,
	"cp850":      charmap.CodePage850,
	"cp852":      charmap.CodePage852,
	"cp858":      charmap.CodePage858,
	"cp866":      charmap.CodePage866,
	"cp1252":     charmap.Windows1252,
	"iso8859-1":  charmap.ISO8859_1,
	"iso8859-15": charmap.ISO8859_15,
}

// EncodeText converts UTF-8 text to the printer's single-byte code page.
// Characters the code page cannot represent are printed as '?'.
// An empty code page or "utf-8" passes the text through unchanged.
func EncodeText(codePage, text string) ([]byte, error) {
	name := strings.ToLower(strings.TrimSpace(codePage))
	if name == "" || name == "utf-8" || name == "utf8" {
		return []byte(text), nil
	}

	cm, ok := codePages[name]
	if !ok {
		return nil, fmt.Errorf("unsupported code page %q", codePage)
	}

	out := make([]byte, 0, len(text))
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]

		b, ok := cm.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out, nil
}
