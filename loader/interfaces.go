package loader

import (
	"context"

	"github.com/panyam/shaderdeck/include"
)

// Fetcher defines the interface for loading shader text by name.
// It is the resource loader seen by the include resolver.
type Fetcher interface {
	// Fetch returns the text of the named resource.  The name is relative to
	// whatever base the implementation was configured with.
	Fetch(ctx context.Context, name string) (string, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc = include.FetcherFunc

var _ include.Fetcher = Fetcher(nil)
