// Package deck finds the shader canvases of an HTML slide deck.
package deck

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/panyam/shaderdeck/loader"
	"golang.org/x/net/html"
)

// CanvasClass marks the elements that host a shader program.
const CanvasClass = "glcanvas"

// Scan parses an HTML document and returns one program spec per element
// carrying the glcanvas class, in document order.
//
// A "fragment" attribute makes a classical program.  Without it, "viewer"
// and "progressive" make a two pass program.  "vertex" overrides the default
// vertex shader in both cases.
func Scan(r io.Reader) ([]loader.ProgramSpec, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing deck: %w", err)
	}

	var specs []loader.ProgramSpec
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || !hasClass(n, CanvasClass) {
			continue
		}
		specs = append(specs, specFor(n, len(specs)+1))
	}
	return specs, nil
}

// ScanFile is Scan over the file at path.
func ScanFile(path string) ([]loader.ProgramSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Scan(f)
}

func specFor(n *html.Node, index int) loader.ProgramSpec {
	spec := loader.ProgramSpec{
		Name:   attr(n, "id"),
		Vertex: attr(n, "vertex"),
	}
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("canvas-%d", index)
	}

	if frag := attr(n, "fragment"); frag != "" {
		spec.Fragment = frag
	} else if viewer := attr(n, "viewer"); viewer != "" {
		spec.Fragment = viewer
		spec.Progressive = attr(n, "progressive")
	}
	return spec.WithDefaults()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}
