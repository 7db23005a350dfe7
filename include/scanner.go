// Package include resolves and inlines #include directives in shader
// sources.  Includes are fetched once per Session and substituted verbatim,
// each preceded by a #line reset.
package include

import (
	"iter"
	"regexp"
)

// Pattern matches one #include directive at the start of a line.  Both the
// resolver and the inliner scan with it so what gets fetched is exactly what
// gets substituted later.
//
// Group 1 is the referenced filename.
var Pattern = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include ["<]([^"<>\n]+)[">]`)

// Match is one include directive found in a buffer.
type Match struct {
	// Span is the literal text matched in the buffer, leading whitespace
	// included.  It is the dedup key and the substitution anchor.
	Span string

	// Filename is the file the directive refers to.
	Filename string
}

// Scan returns the include directives in buffer in order of appearance.
// The sequence can be ranged over any number of times.
func Scan(buffer string) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		for _, loc := range Pattern.FindAllStringSubmatchIndex(buffer, -1) {
			m := Match{
				Span:     buffer[loc[0]:loc[1]],
				Filename: buffer[loc[2]:loc[3]],
			}
			if !yield(m) {
				return
			}
		}
	}
}

// ScanAll collects Scan(buffer) into a slice.
func ScanAll(buffer string) (out []Match) {
	for m := range Scan(buffer) {
		out = append(out, m)
	}
	return
}
