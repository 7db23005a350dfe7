package include

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Fetcher loads the text of an included file by name.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, name string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// Cache maps a literal directive span to the body it resolved to.
type Cache map[string]string

// errSessionReset fails loads that were overtaken by Reset.
var errSessionReset = errors.New("session reset while fetching")

// load tracks the single fetch issued for one span.
type load struct {
	span     string
	filename string
	done     chan struct{}
	err      error
}

// Session holds the include state shared by every buffer of one
// preprocessing run (typically the vertex and fragment shaders of a
// program).  A Session is safe for concurrent use.
type Session struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *slog.Logger

	// mu guards cache, pending and seen together
	mu      sync.Mutex
	cache   Cache
	pending map[string]struct{}
	seen    map[string]*load
}

type Option func(*Session)

// WithTimeout bounds how long a single Resolve call waits for its fetches,
// and how long each fetch may run.  Zero means no bound beyond the caller's
// context.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithLogger sets the logger that receives missing include reports.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func NewSession(fetcher Fetcher, opts ...Option) *Session {
	s := &Session{fetcher: fetcher}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset drops every cached, pending and seen include.  Fetches still in
// flight from before the reset complete without touching the new state, and
// the Resolve calls waiting on them fail.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = Cache{}
	s.pending = map[string]struct{}{}
	s.seen = map[string]*load{}
}

// Resolve fetches every include referenced by buffers that this session has
// not requested before, then waits until all fetches of the session have
// settled.  It returns an *UnresolvedError if any include is still pending
// afterwards, including ones that failed during earlier calls.
//
// Fetches keep the values of the ctx that issued them but not its
// cancellation: a caller giving up only ends its own wait, and other callers
// joined on the same fetch keep waiting for it.
func (s *Session) Resolve(ctx context.Context, buffers ...string) error {
	fetchCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	for _, buffer := range buffers {
		for m := range Scan(buffer) {
			if _, ok := s.seen[m.Span]; ok {
				continue
			}
			l := &load{span: m.Span, filename: m.Filename, done: make(chan struct{})}
			s.seen[m.Span] = l
			s.pending[m.Span] = struct{}{}
			go s.fetch(fetchCtx, l)
		}
	}
	outstanding := make([]*load, 0, len(s.pending))
	for span := range s.pending {
		outstanding = append(outstanding, s.seen[span])
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, l := range outstanding {
		g.Go(func() error {
			select {
			case <-l.done:
				return l.err
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return s.unresolved(err, outstanding)
	}
	return nil
}

func (s *Session) fetch(ctx context.Context, l *load) {
	defer close(l.done)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	body, err := s.fetcher.Fetch(ctx, l.filename)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.seen[l.span] != l:
		l.err = fmt.Errorf("fetching %q: %w", l.filename, errSessionReset)
	case err != nil:
		l.err = fmt.Errorf("fetching %q: %w", l.filename, err)
	default:
		s.cache[l.span] = body
		delete(s.pending, l.span)
	}
}

// unresolved reports every pending span plus the loads of this call that a
// Reset left behind.
func (s *Session) unresolved(err error, outstanding []*load) *UnresolvedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := map[string]string{}
	for span := range s.pending {
		files[span] = s.seen[span].filename
	}
	for _, l := range outstanding {
		if s.seen[l.span] != l && l.err != nil {
			files[l.span] = l.filename
		}
	}
	out := &UnresolvedError{Err: err}
	out.Spans = slices.Sorted(maps.Keys(files))
	for _, span := range out.Spans {
		out.Files = append(out.Files, files[span])
	}
	return out
}

// Pending returns the spans whose fetch has not succeeded, sorted.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.pending))
}

// Cache returns a copy of the resolved includes.
func (s *Session) Cache() Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.cache)
}

// Inline substitutes the includes of buffer from the session cache.
func (s *Session) Inline(buffer string) (string, error) {
	return Inline(buffer, s.Cache())
}

func (s *Session) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
