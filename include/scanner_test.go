package include

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanOrder(t *testing.T) {
	buffer := `#version 300 es
#include "common.glsl"
precision highp float;
#include <noise.glsl>
void main() {}
#include "common.glsl"
`
	matches := ScanAll(buffer)
	assert.Equal(t, []Match{
		{Span: `#include "common.glsl"`, Filename: "common.glsl"},
		{Span: `#include <noise.glsl>`, Filename: "noise.glsl"},
		{Span: `#include "common.glsl"`, Filename: "common.glsl"},
	}, matches)
}

func TestScanIsRestartable(t *testing.T) {
	buffer := "#include \"a.glsl\"\n  #include <b.glsl>\nvoid main(){}"
	seq := Scan(buffer)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
	assert.Equal(t, first, ScanAll(buffer))
	assert.Len(t, first, 2)
}

func TestScanStopsEarly(t *testing.T) {
	buffer := "#include \"a\"\n#include \"b\"\n#include \"c\"\n"
	var got []string
	for m := range Scan(buffer) {
		got = append(got, m.Filename)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestScanDirectiveForms(t *testing.T) {
	tests := []struct {
		name     string
		buffer   string
		span     string
		filename string
	}{
		{"quoted", `#include "lights.glsl"`, `#include "lights.glsl"`, "lights.glsl"},
		{"angled", `#include <lights.glsl>`, `#include <lights.glsl>`, "lights.glsl"},
		{"leading spaces", "    #include \"lights.glsl\"", "    #include \"lights.glsl\"", "lights.glsl"},
		{"leading tab", "\t#include \"lights.glsl\"", "\t#include \"lights.glsl\"", "lights.glsl"},
		{"space after hash", `# include "lights.glsl"`, `# include "lights.glsl"`, "lights.glsl"},
		{"path", `#include "lib/brdf/ggx.glsl"`, `#include "lib/brdf/ggx.glsl"`, "lib/brdf/ggx.glsl"},
		{"trailing content", `#include "a.glsl" // shared`, `#include "a.glsl"`, "a.glsl"},
		{"mid buffer", "float y;\n#include \"a.glsl\"\nfloat z;", `#include "a.glsl"`, "a.glsl"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matches := ScanAll(tc.buffer)
			if assert.Len(t, matches, 1) {
				assert.Equal(t, tc.span, matches[0].Span)
				assert.Equal(t, tc.filename, matches[0].Filename)
			}
		})
	}
}

func TestScanIgnoresMalformed(t *testing.T) {
	for _, buffer := range []string{
		`#include "unterminated`,
		`#include <unterminated`,
		`#include ""`,
		`#include  "two-spaces.glsl"`,
		`#includes "typo.glsl"`,
		`// #include "commented.glsl"`,
		`float x; #include "not-at-line-start.glsl"`,
		"#include \"split\n.glsl\"",
	} {
		assert.Empty(t, ScanAll(buffer), buffer)
	}
}

func TestScanSpanIdentifiesFile(t *testing.T) {
	// identical directive text is the same key, anything else differs
	matches := ScanAll("#include \"a.glsl\"\n#include \"a.glsl\"\n#include <a.glsl>\n#include \"b.glsl\"\n")
	spans := map[string]string{}
	for _, m := range matches {
		if prev, ok := spans[m.Span]; ok {
			assert.Equal(t, prev, m.Filename)
		}
		spans[m.Span] = m.Filename
	}
	assert.Len(t, spans, 3)
}
