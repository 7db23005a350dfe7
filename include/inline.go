package include

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LineMarker precedes every inlined body so compiler diagnostics count
// lines from the start of the included file.
const LineMarker = "\n#line 1\n"

// Inline replaces every include directive in buffer with LineMarker followed
// by the cached body for its span.  Repeated directives are each replaced;
// nothing guards against a file being included twice.
//
// Every span in buffer must be in cache.  Otherwise ErrMissingInclude is
// returned and no output is produced.
func Inline(buffer string, cache Cache) (string, error) {
	var missing []string
	out := Pattern.ReplaceAllStringFunc(buffer, func(span string) string {
		body, ok := cache[span]
		if !ok {
			missing = append(missing, strings.TrimSpace(span))
			return span
		}
		return LineMarker + body
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingInclude, strings.Join(missing, ", "))
	}
	return out, nil
}

// Process resolves the includes of source and passes the inlined text to
// onComplete.  onComplete is called exactly once on success and never on
// failure; unresolved includes are logged and returned as *UnresolvedError.
func (s *Session) Process(ctx context.Context, source string, onComplete func(string)) error {
	if err := s.Resolve(ctx, source); err != nil {
		s.report(err)
		return err
	}
	out, err := s.Inline(source)
	if err != nil {
		return err
	}
	onComplete(out)
	return nil
}

// ProcessAll resolves the includes of all sources in this session and
// returns each one inlined, in the same order.
func (s *Session) ProcessAll(ctx context.Context, sources ...string) ([]string, error) {
	if err := s.Resolve(ctx, sources...); err != nil {
		s.report(err)
		return nil, err
	}
	out := make([]string, len(sources))
	for i, src := range sources {
		inlined, err := s.Inline(src)
		if err != nil {
			return nil, err
		}
		out[i] = inlined
	}
	return out, nil
}

func (s *Session) report(err error) {
	var ue *UnresolvedError
	if !errors.As(err, &ue) {
		return
	}
	s.log().Warn("Missing GLSL header files", "count", len(ue.Spans), "error", ue.Err)
	for i, span := range ue.Spans {
		s.log().Warn("Unresolved include", "file", ue.Files[i], "directive", strings.TrimSpace(span))
	}
}

// Process runs source through a fresh session backed by fetcher.
func Process(ctx context.Context, fetcher Fetcher, source string, onComplete func(string), opts ...Option) error {
	return NewSession(fetcher, opts...).Process(ctx, source, onComplete)
}
