package include

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves files from a map and counts fetches per name.  When gate
// is set every fetch blocks until it is closed.
type fakeFetcher struct {
	mu    sync.Mutex
	files map[string]string
	calls map[string]int
	gate  chan struct{}
}

func newFakeFetcher(files map[string]string) *fakeFetcher {
	return &fakeFetcher{files: files, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	f.calls[name]++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	body, ok := f.files[name]
	if !ok {
		return "", fmt.Errorf("%s: not found", name)
	}
	return body, nil
}

func (f *fakeFetcher) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func TestProcessInlinesInclude(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"a.glsl": "float x;"})

	var got []string
	err := Process(context.Background(), fetcher, "#include \"a.glsl\"\nvoid main(){}", func(out string) {
		got = append(got, out)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"\n#line 1\nfloat x;\nvoid main(){}"}, got)
}

func TestProcessMissingInclude(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"a.glsl": "float x;"})
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	session := NewSession(fetcher, WithLogger(logger))

	called := false
	err := session.Process(context.Background(), "#include \"a.glsl\"\n#include \"missing.glsl\"\nvoid main(){}", func(string) {
		called = true
	})
	require.Error(t, err)
	assert.False(t, called, "onComplete must not run when an include is missing")

	var ue *UnresolvedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"missing.glsl"}, ue.Files)
	assert.Equal(t, []string{`#include "missing.glsl"`}, ue.Spans)
	assert.Contains(t, err.Error(), "missing.glsl")

	assert.Equal(t, []string{`#include "missing.glsl"`}, session.Pending())
	assert.Contains(t, session.Cache(), `#include "a.glsl"`)
	assert.Contains(t, logs.String(), "missing.glsl")
}

func TestResolveDedupAcrossBuffers(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{
		"common.glsl": "uniform float u_Time;",
		"noise.glsl":  "float noise(vec2 p);",
	})
	session := NewSession(fetcher)

	vertex := "#include \"common.glsl\"\nvoid main(){ gl_Position = vec4(0.0); }"
	fragment := "#include \"common.glsl\"\n#include \"noise.glsl\"\n#include \"common.glsl\"\nvoid main(){}"
	require.NoError(t, session.Resolve(context.Background(), vertex, fragment))

	assert.Equal(t, 1, fetcher.count("common.glsl"))
	assert.Equal(t, 1, fetcher.count("noise.glsl"))
	assert.Empty(t, session.Pending())
}

func TestResolveDedupAcrossCalls(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"common.glsl": "float pi = 3.14159;"})
	session := NewSession(fetcher)

	for range 3 {
		require.NoError(t, session.Resolve(context.Background(), `#include "common.glsl"`))
	}
	out, err := session.ProcessAll(context.Background(), "#include \"common.glsl\"\nvoid a(){}", "#include \"common.glsl\"\nvoid b(){}")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"\n#line 1\nfloat pi = 3.14159;\nvoid a(){}",
		"\n#line 1\nfloat pi = 3.14159;\nvoid b(){}",
	}, out)
	assert.Equal(t, 1, fetcher.count("common.glsl"))
}

func TestResolveJoinsInFlightFetch(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"common.glsl": "float x;"})
	fetcher.gate = make(chan struct{})
	session := NewSession(fetcher)

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			errs <- session.Resolve(context.Background(), `#include "common.glsl"`)
		}()
	}

	// let both calls reach the join before the fetch completes
	require.Eventually(t, func() bool { return fetcher.count("common.glsl") == 1 }, time.Second, time.Millisecond)
	close(fetcher.gate)

	for range 2 {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, 1, fetcher.count("common.glsl"))
	assert.Equal(t, "float x;", session.Cache()[`#include "common.glsl"`])
}

func TestResolveWaitsForEarlierPending(t *testing.T) {
	gates := map[string]chan struct{}{
		"slow.glsl": make(chan struct{}),
		"fast.glsl": make(chan struct{}),
	}
	fetcher := FetcherFunc(func(ctx context.Context, name string) (string, error) {
		<-gates[name]
		return "// " + name, nil
	})
	session := NewSession(fetcher)

	first := make(chan error, 1)
	go func() { first <- session.Resolve(context.Background(), `#include "slow.glsl"`) }()
	require.Eventually(t, func() bool { return len(session.Pending()) == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- session.Resolve(context.Background(), `#include "fast.glsl"`) }()

	// completion order is the reverse of issue order
	close(gates["fast.glsl"])
	select {
	case err := <-second:
		t.Fatalf("second Resolve returned before the earlier fetch settled: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	close(gates["slow.glsl"])

	assert.NoError(t, <-first)
	assert.NoError(t, <-second)
	assert.Empty(t, session.Pending())
	assert.Len(t, session.Cache(), 2)
}

func TestResolveFailureIsNotRetried(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"a.glsl": "float a;"})
	session := NewSession(fetcher)

	err := session.Resolve(context.Background(), `#include "missing.glsl"`)
	require.Error(t, err)

	// the failed span stays pending, so unrelated buffers fail too
	err = session.Resolve(context.Background(), "#include \"missing.glsl\"\n#include \"a.glsl\"")
	var ue *UnresolvedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"missing.glsl"}, ue.Files)
	assert.Equal(t, 1, fetcher.count("missing.glsl"))
	assert.Equal(t, 1, fetcher.count("a.glsl"))
}

func TestResolveTimeout(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"slow.glsl": "float s;"})
	fetcher.gate = make(chan struct{})
	defer close(fetcher.gate)
	session := NewSession(fetcher, WithTimeout(20*time.Millisecond))

	err := session.Resolve(context.Background(), `#include "slow.glsl"`)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var ue *UnresolvedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{"slow.glsl"}, ue.Files)
}

func TestResolveCanceledContext(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"a.glsl": "float a;"})
	fetcher.gate = make(chan struct{})
	defer close(fetcher.gate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSession(fetcher).Resolve(ctx, `#include "a.glsl"`)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveCallerDeadlineDoesNotFailJoinedCaller(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"a.glsl": "float a;"})
	fetcher.gate = make(chan struct{})
	session := NewSession(fetcher)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := session.Resolve(short, `#include "a.glsl"`)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{`#include "a.glsl"`}, session.Pending(), "fetch keeps running")

	done := make(chan error, 1)
	go func() { done <- session.Resolve(context.Background(), `#include "a.glsl"`) }()
	close(fetcher.gate)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("joined Resolve never returned")
	}
	assert.Equal(t, 1, fetcher.count("a.glsl"))
	assert.Empty(t, session.Pending())
	assert.NoError(t, session.Resolve(context.Background(), `#include "a.glsl"`))
}

func TestResetFailsInFlightProcess(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"a.glsl": "float a;"})
	fetcher.gate = make(chan struct{})
	var logs bytes.Buffer
	session := NewSession(fetcher, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	called := false
	done := make(chan error, 1)
	go func() {
		done <- session.Process(context.Background(), `#include "a.glsl"`, func(string) { called = true })
	}()
	require.Eventually(t, func() bool { return fetcher.count("a.glsl") == 1 }, 2*time.Second, 5*time.Millisecond)

	session.Reset()
	close(fetcher.gate)

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process never returned")
	}
	var ue *UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, errSessionReset)
	assert.Equal(t, []string{"a.glsl"}, ue.Files)
	assert.False(t, called)
	assert.Contains(t, logs.String(), "a.glsl")
	assert.Empty(t, session.Cache())
}

func TestResolveWithoutIncludes(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	session := NewSession(fetcher)
	require.NoError(t, session.Resolve(context.Background(), "void main(){}", ""))
	assert.Empty(t, fetcher.calls)
}

func TestSessionReset(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"a.glsl": "float a;"})
	session := NewSession(fetcher)

	require.NoError(t, session.Resolve(context.Background(), `#include "a.glsl"`))
	session.Reset()
	assert.Empty(t, session.Cache())

	require.NoError(t, session.Resolve(context.Background(), `#include "a.glsl"`))
	assert.Equal(t, 2, fetcher.count("a.glsl"))
}

func TestSessionsAreIndependent(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{"a.glsl": "float a;"})
	one, two := NewSession(fetcher), NewSession(fetcher)

	require.NoError(t, one.Resolve(context.Background(), `#include "a.glsl"`))
	assert.Empty(t, two.Cache())
	require.NoError(t, two.Resolve(context.Background(), `#include "a.glsl"`))
	assert.Equal(t, 2, fetcher.count("a.glsl"))
}

func TestInlineRepeatedInclude(t *testing.T) {
	buffer := "#include \"a.glsl\"\nfloat y;\n#include \"a.glsl\"\nvoid main(){}"
	out, err := Inline(buffer, Cache{`#include "a.glsl"`: "float x;"})
	require.NoError(t, err)
	assert.Equal(t, "\n#line 1\nfloat x;\nfloat y;\n\n#line 1\nfloat x;\nvoid main(){}", out)
	assert.Equal(t, 2, strings.Count(out, LineMarker))
	assert.Equal(t, 2, strings.Count(out, "float x;"))
}

func TestInlineLeavesNoDirectives(t *testing.T) {
	buffer := "  #include <lights.glsl>\n#include \"brdf.glsl\"\nvoid main(){}"
	cache := Cache{
		"  #include <lights.glsl>": "vec3 light;",
		`#include "brdf.glsl"`:     "float brdf();",
	}
	out, err := Inline(buffer, cache)
	require.NoError(t, err)
	assert.Empty(t, ScanAll(out))
	assert.Contains(t, out, LineMarker+"vec3 light;")
	assert.Contains(t, out, LineMarker+"float brdf();")
}

func TestInlineWithoutIncludes(t *testing.T) {
	buffer := "precision highp float;\nvoid main(){ gl_FragColor = vec4(1.0); }\n"
	out, err := Inline(buffer, nil)
	require.NoError(t, err)
	assert.Equal(t, buffer, out)
}

func TestInlineMissingCacheEntry(t *testing.T) {
	out, err := Inline("#include \"a.glsl\"\n#include \"b.glsl\"", Cache{`#include "a.glsl"`: "float a;"})
	assert.ErrorIs(t, err, ErrMissingInclude)
	assert.Contains(t, err.Error(), "b.glsl")
	assert.Empty(t, out)
}

func TestInlineBodyIsLiteral(t *testing.T) {
	out, err := Inline(`#include "a.glsl"`, Cache{`#include "a.glsl"`: "vec2 $1 = ${x};"})
	require.NoError(t, err)
	assert.Equal(t, LineMarker+"vec2 $1 = ${x};", out)
}
