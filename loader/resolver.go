package loader

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBaseURL is the base the browser harness used for shader paths.
const DefaultBaseURL = "../"

// BaseURLFetcher implements Fetcher by prefixing names with a base URL and
// reading the result from a FileSystem.
type BaseURLFetcher struct {
	BaseURL string
	FS      FileSystem
}

// NewBaseURLFetcher creates a fetcher over fs.  A nil fs uses
// CreateDefaultFileSystem.
func NewBaseURLFetcher(baseURL string, fs FileSystem) *BaseURLFetcher {
	if fs == nil {
		fs = CreateDefaultFileSystem()
	}
	return &BaseURLFetcher{BaseURL: baseURL, FS: fs}
}

// Fetch implements the Fetcher interface
func (f *BaseURLFetcher) Fetch(ctx context.Context, name string) (string, error) {
	path := f.Resolve(name)
	data, err := f.FS.ReadFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("cannot load '%s' (resolved to '%s'): %w", name, path, err)
	}
	return string(data), nil
}

// Resolve returns the path name is read from.
func (f *BaseURLFetcher) Resolve(name string) string {
	// URLs and GitHub paths are handled as-is by the filesystem mounts
	if strings.Contains(name, "://") || strings.HasPrefix(name, "github.com/") {
		return name
	}
	return f.BaseURL + name
}

// CreateDefaultFileSystem creates a composite filesystem suitable for CLI
// and server usage: local disk as fallback plus GitHub and HTTP(S) mounts.
func CreateDefaultFileSystem() FileSystem {
	cfs := NewCompositeFS()
	cfs.SetFallback(NewLocalFS("."))
	cfs.Mount("github.com/", NewGitHubFS())
	cfs.Mount("https://", NewHTTPFileSystem(""))
	cfs.Mount("http://", NewHTTPFileSystem(""))
	return cfs
}
