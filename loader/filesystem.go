package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is wrapped by every FileSystem when a file does not exist.
var ErrNotFound = errors.New("file not found")

// HTTPError is returned for non-200 responses.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %s", e.URL, e.Status)
}

// FileSystem interface provides an abstraction for reading shader sources
// that can work in different environments (local disk, HTTP, memory, etc.)
type FileSystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
}

// CachingFS is a FileSystem that keeps what it read until ClearCache.
type CachingFS interface {
	FileSystem
	ClearCache()
}

// WritableFS is a FileSystem that can also store files.
type WritableFS interface {
	FileSystem
	WriteFile(path string, data []byte) error
}

// CompositeFS routes each path to the filesystem mounted at its longest
// matching prefix, or to the fallback when no prefix matches.
type CompositeFS struct {
	mu       sync.RWMutex
	mounts   []mount // longest prefix first
	fallback FileSystem
}

type mount struct {
	prefix string
	fs     FileSystem
}

func NewCompositeFS() *CompositeFS {
	return &CompositeFS{}
}

func (c *CompositeFS) SetFallback(fs FileSystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = fs
}

// Mount serves every path starting with prefix from fs, replacing an
// earlier mount of the same prefix.
func (c *CompositeFS) Mount(prefix string, fs FileSystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounts = slices.DeleteFunc(c.mounts, func(m mount) bool { return m.prefix == prefix })
	c.mounts = append(c.mounts, mount{prefix, fs})
	slices.SortStableFunc(c.mounts, func(a, b mount) int { return len(b.prefix) - len(a.prefix) })
}

func (c *CompositeFS) findFS(path string) FileSystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.mounts {
		if strings.HasPrefix(path, m.prefix) {
			return m.fs
		}
	}
	return c.fallback
}

func (c *CompositeFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	fs := c.findFS(path)
	if fs == nil {
		return nil, fmt.Errorf("%w: no filesystem mounted for %s", ErrNotFound, path)
	}
	return fs.ReadFile(ctx, path)
}

// ClearCache clears the cache of every mounted filesystem that keeps one.
func (c *CompositeFS) ClearCache() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fss := []FileSystem{c.fallback}
	for _, m := range c.mounts {
		fss = append(fss, m.fs)
	}
	for _, fs := range fss {
		if cfs, ok := fs.(CachingFS); ok {
			cfs.ClearCache()
		}
	}
}

func (c *CompositeFS) Exists(ctx context.Context, path string) bool {
	fs := c.findFS(path)
	return fs != nil && fs.Exists(ctx, path)
}

// LocalFS implements FileSystem using the local disk
type LocalFS struct {
	basePath string
}

func NewLocalFS(basePath string) *LocalFS {
	return &LocalFS{basePath: basePath}
}

func (l *LocalFS) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.basePath, path)
}

func (l *LocalFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.resolvePath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

func (l *LocalFS) WriteFile(path string, data []byte) error {
	fullPath := l.resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0644)
}

func (l *LocalFS) Exists(ctx context.Context, path string) bool {
	_, err := os.Stat(l.resolvePath(path))
	return err == nil
}

// MemoryFS implements an in-memory file system
type MemoryFS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files: make(map[string][]byte),
	}
}

func (m *MemoryFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.files[path]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return append([]byte(nil), data...), nil // Return a copy
}

func (m *MemoryFS) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[path] = append([]byte(nil), data...) // Store a copy
	return nil
}

func (m *MemoryFS) Exists(ctx context.Context, path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists
}

// PreloadFiles adds files to the memory filesystem
func (m *MemoryFS) PreloadFiles(files map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for path, content := range files {
		m.files[path] = append([]byte(nil), content...)
	}
}

// HTTPFileSystem fetches files over HTTP
type HTTPFileSystem struct {
	baseURL string
	client  *http.Client
	cache   sync.Map // path -> []byte
}

func NewHTTPFileSystem(baseURL string) *HTTPFileSystem {
	return &HTTPFileSystem{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (h *HTTPFileSystem) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (h *HTTPFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if cached, ok := h.cache.Load(path); ok {
		return cached.([]byte), nil
	}

	url := h.url(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %w", ErrNotFound, &HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status})
	case resp.StatusCode != http.StatusOK:
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	h.cache.Store(path, data)
	return data, nil
}

func (h *HTTPFileSystem) Exists(ctx context.Context, path string) bool {
	_, err := h.ReadFile(ctx, path)
	return err == nil
}

// ClearCache clears the HTTP cache
func (h *HTTPFileSystem) ClearCache() {
	h.cache.Clear()
}

// GitHubFS provides access to GitHub raw files
type GitHubFS struct {
	httpFS *HTTPFileSystem
}

func NewGitHubFS() *GitHubFS {
	return &GitHubFS{
		httpFS: NewHTTPFileSystem("https://raw.githubusercontent.com"),
	}
}

func (g *GitHubFS) transformPath(path string) string {
	// github.com/user/repo/file.glsl -> /user/repo/main/file.glsl
	if rest, ok := strings.CutPrefix(path, "github.com/"); ok {
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) >= 3 {
			return fmt.Sprintf("/%s/%s/main/%s", parts[0], parts[1], parts[2])
		}
	}
	return path
}

func (g *GitHubFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return g.httpFS.ReadFile(ctx, g.transformPath(path))
}

func (g *GitHubFS) ClearCache() {
	g.httpFS.ClearCache()
}

func (g *GitHubFS) Exists(ctx context.Context, path string) bool {
	_, err := g.ReadFile(ctx, path)
	return err == nil
}
