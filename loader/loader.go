package loader

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/panyam/shaderdeck/include"
	"golang.org/x/sync/errgroup"
)

// Shader sources used when a canvas does not name its own.
const (
	DefaultVertexShader   = "shaders/defaults/vertex.shader"
	DefaultFragmentShader = "shaders/defaults/fragment.shader"
	DefaultViewerShader   = "shaders/defaults/viewer.shader"
)

//go:embed shaders/defaults/*.shader
var defaultShaders embed.FS

// ProgramSpec names the shader files of one canvas.  A non-empty Progressive
// makes it a two pass program: Progressive accumulates into a texture that
// Fragment (the viewer) displays.
type ProgramSpec struct {
	Name        string `json:"name"`
	Vertex      string `json:"vertex"`
	Fragment    string `json:"fragment"`
	Progressive string `json:"progressive,omitempty"`
}

func (s ProgramSpec) IsProgressive() bool {
	return s.Progressive != ""
}

// WithDefaults fills in the default vertex and fragment shaders.  An
// unnamed spec is named after the shader it was asked for: the progressive
// pass if any, else the fragment shader.
func (s ProgramSpec) WithDefaults() ProgramSpec {
	if s.Vertex == "" {
		s.Vertex = DefaultVertexShader
	}
	if s.Fragment == "" {
		if s.IsProgressive() {
			s.Fragment = DefaultViewerShader
		} else {
			s.Fragment = DefaultFragmentShader
		}
	}
	if s.Name == "" {
		s.Name = s.Fragment
		if s.IsProgressive() {
			s.Name = s.Progressive
		}
	}
	return s
}

// Sources lists the files of the program in vertex, fragment, progressive
// order.
func (s ProgramSpec) Sources() []string {
	out := []string{s.Vertex, s.Fragment}
	if s.IsProgressive() {
		out = append(out, s.Progressive)
	}
	return out
}

// Program holds the inlined sources of a ProgramSpec.
type Program struct {
	Spec        ProgramSpec `json:"spec"`
	Vertex      string      `json:"vertex"`
	Fragment    string      `json:"fragment"`
	Progressive string      `json:"progressive,omitempty"`
}

// ProgramLoader fetches the sources of shader programs and resolves their
// includes.  Every program gets its own include session shared by all of its
// sources.
type ProgramLoader struct {
	fetcher Fetcher
	opts    []include.Option
}

// NewProgramLoader creates a new program loader.  opts are applied to every
// include session it creates.
func NewProgramLoader(fetcher Fetcher, opts ...include.Option) *ProgramLoader {
	return &ProgramLoader{fetcher: fetcher, opts: opts}
}

// Load fetches and inlines every source of spec.
func (l *ProgramLoader) Load(ctx context.Context, spec ProgramSpec) (*Program, error) {
	spec = spec.WithDefaults()
	names := spec.Sources()

	texts := make([]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() (err error) {
			texts[i], err = l.fetchSource(gctx, name)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("unable to load shaders of '%s': %w", spec.Name, err)
	}

	session := include.NewSession(l.fetcher, l.opts...)
	out, err := session.ProcessAll(ctx, texts...)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve includes of '%s': %w", spec.Name, err)
	}

	prog := &Program{Spec: spec, Vertex: out[0], Fragment: out[1]}
	if spec.IsProgressive() {
		prog.Progressive = out[2]
	}
	return prog, nil
}

// fetchSource fetches a top level shader, falling back to the bundled copy
// of the default shaders.
func (l *ProgramLoader) fetchSource(ctx context.Context, name string) (string, error) {
	text, err := l.fetcher.Fetch(ctx, name)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return text, err
	}
	if data, derr := defaultShaders.ReadFile(path.Clean(name)); derr == nil {
		slog.Debug("Using bundled default shader", "name", name)
		return string(data), nil
	}
	return "", err
}

// LoadResult holds the outcome of loading several programs.
type LoadResult struct {
	Programs []*Program
	Errors   ErrorCollector
}

// LoadAll loads every spec concurrently.  Programs are returned in spec
// order; failed programs are nil and their errors collected.
func (l *ProgramLoader) LoadAll(ctx context.Context, specs []ProgramSpec) *LoadResult {
	result := &LoadResult{Programs: make([]*Program, len(specs))}
	errs := make([]error, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			result.Programs[i], errs[i] = l.Load(ctx, spec)
			return nil
		})
	}
	g.Wait()

	for _, err := range errs {
		if err != nil {
			result.Errors.AddErrors(err)
		}
	}
	return result
}
