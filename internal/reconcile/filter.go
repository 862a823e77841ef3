package reconcile

import (
	"fmt"
	"strings"
)

// DefaultMaxTypeLength is the exclusive upper bound on annotation length.
const DefaultMaxTypeLength = 100

// Acceptable reports whether an inferred type text may be written. When it
// may not, the reason is returned.
func Acceptable(text string, maxLen int) (string, bool) {
	switch {
	case text == "":
		return "no type inferred", false
	case text == "any" || text == "unknown":
		return fmt.Sprintf("inferred type is %s", text), false
	case strings.Contains(text, "import("):
		return "inferred type refers to an unexported declaration", false
	case len(text) >= maxLen:
		return fmt.Sprintf("inferred type is %d characters (limit %d)", len(text), maxLen), false
	}
	return "", true
}

// narrowsString reports whether text is the literal type of the string
// literal lit, which makes it a subset of string.
func narrowsString(text, lit string) bool {
	if !isQuoted(text) || !isQuoted(lit) || strings.Contains(text, "${") {
		return false
	}
	return text[1:len(text)-1] == lit[1:len(lit)-1]
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	q := s[0]
	return (q == '\'' || q == '"') && s[len(s)-1] == q
}
