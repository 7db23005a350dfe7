//go:build js && wasm

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"syscall/js"

	"github.com/panyam/shaderdeck/loader"
)

// FetchFS reads files with the browser's fetch API.  Relative paths resolve
// against the page, the way the slides load their shaders.
type FetchFS struct {
	cache sync.Map // path -> []byte
}

func (f *FetchFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if cached, ok := f.cache.Load(path); ok {
		return cached.([]byte), nil
	}

	controller := js.Global().Get("AbortController").New()
	stop := context.AfterFunc(ctx, func() { controller.Call("abort") })
	defer stop()

	response, err := await(js.Global().Call("fetch", path, map[string]any{
		"signal": controller.Get("signal"),
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	if status := response.Get("status").Int(); !response.Get("ok").Bool() {
		herr := &loader.HTTPError{URL: path, StatusCode: status, Status: fmt.Sprintf("%d %s", status, response.Get("statusText").String())}
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", loader.ErrNotFound, herr)
		}
		return nil, herr
	}

	text, err := await(response.Call("text"))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	data := []byte(text.String())
	f.cache.Store(path, data)
	return data, nil
}

func (f *FetchFS) Exists(ctx context.Context, path string) bool {
	_, err := f.ReadFile(ctx, path)
	return err == nil
}

// ClearCache forgets every fetched file.
func (f *FetchFS) ClearCache() {
	f.cache.Clear()
}

// await blocks the calling goroutine until promise settles.  It must not be
// called from a js.FuncOf callback.
func await(promise js.Value) (js.Value, error) {
	result := make(chan js.Value, 1)
	errChan := make(chan error, 1)

	success := js.FuncOf(func(this js.Value, args []js.Value) any {
		result <- args[0]
		return nil
	})
	defer success.Release()

	failure := js.FuncOf(func(this js.Value, args []js.Value) any {
		errChan <- errors.New(args[0].Call("toString").String())
		return nil
	})
	defer failure.Release()

	promise.Call("then", success, failure)

	select {
	case v := <-result:
		return v, nil
	case err := <-errChan:
		return js.Undefined(), err
	}
}

// newFileSystem mounts GitHub paths and absolute URLs in front of the
// browser fetch fallback.
func newFileSystem() *loader.CompositeFS {
	fetch := &FetchFS{}
	cfs := loader.NewCompositeFS()
	cfs.SetFallback(fetch)
	cfs.Mount("github.com/", loader.NewGitHubFS())
	cfs.Mount("https://", fetch)
	cfs.Mount("http://", fetch)
	return cfs
}
