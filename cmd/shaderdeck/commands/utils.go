package commands

import (
	"path/filepath"
	"strings"

	"github.com/panyam/shaderdeck/include"
	"github.com/panyam/shaderdeck/loader"
)

// newFetcher returns a fetcher that resolves names the way a page in
// pageDir would: the base URL is taken relative to that directory unless it
// is an absolute URL.
func newFetcher(pageDir string) *loader.BaseURLFetcher {
	base := cfg.BaseURL
	if !strings.Contains(base, "://") && pageDir != "" && pageDir != "." {
		base = filepath.ToSlash(filepath.Join(pageDir, base)) + "/"
	}
	return loader.NewBaseURLFetcher(base, nil)
}

func sessionOptions() []include.Option {
	return []include.Option{include.WithTimeout(cfg.Timeout)}
}

func isDeck(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
