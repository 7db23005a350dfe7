//go:build js && wasm

// The shaderdeck WASM module exposes a Shaders object to the slides:
//
//	Shaders.init(baseUrl)
//	Shaders.generateShaderFromTxt(src, fn)
//	Shaders.loadProgram(vert, frag, prog, fn)
//
// Shader and include names are fetched relative to baseUrl ("../" by
// default).  init also forgets every file fetched so far.  fn receives the
// inlined sources and is never called when an include could not be
// resolved; the failure is reported on the console.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall/js"
	"time"

	"github.com/panyam/shaderdeck/include"
	"github.com/panyam/shaderdeck/loader"
)

const resolveTimeout = 10 * time.Second

var (
	// fileSystem caches every fetched file until init.
	fileSystem = newFileSystem()

	// Global fetcher shared by every call; init replaces its base URL.
	fetcher = loader.NewBaseURLFetcher(loader.DefaultBaseURL, fileSystem)
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	fmt.Println("shaderdeck WASM module loading...")

	js.Global().Set("Shaders", js.ValueOf(map[string]any{
		"init":                  js.FuncOf(initShaders),
		"generateShaderFromTxt": js.FuncOf(generateShaderFromTxt),
		"loadProgram":           js.FuncOf(loadProgram),
	}))

	fmt.Println("shaderdeck WASM module loaded successfully")

	// Keep the WASM module running
	select {}
}

func initShaders(this js.Value, args []js.Value) any {
	baseURL := loader.DefaultBaseURL
	if len(args) > 0 && args[0].Type() == js.TypeString {
		baseURL = args[0].String()
	}
	fetcher.BaseURL = baseURL
	fileSystem.ClearCache()
	return nil
}

func generateShaderFromTxt(this js.Value, args []js.Value) any {
	if len(args) < 2 || args[1].Type() != js.TypeFunction {
		consoleError("generateShaderFromTxt requires a source and a callback")
		return nil
	}
	src, fn := args[0].String(), args[1]

	// Fetches block on promises, so they must leave the JS callback.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		err := include.Process(ctx, fetcher, src, func(out string) { fn.Invoke(out) })
		if err != nil {
			consoleError("Missing GLSL header files!", err.Error())
		}
	}()
	return nil
}

func loadProgram(this js.Value, args []js.Value) any {
	if len(args) < 4 || args[3].Type() != js.TypeFunction {
		consoleError("loadProgram requires vert, frag, prog and a callback")
		return nil
	}
	spec := loader.ProgramSpec{
		Vertex:      optString(args[0]),
		Fragment:    optString(args[1]),
		Progressive: optString(args[2]),
	}
	fn := args[3]

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		prog, err := loader.NewProgramLoader(fetcher).Load(ctx, spec)
		if err != nil {
			consoleError("Unable to load vertex and fragment shaders", err.Error())
			return
		}
		if prog.Spec.IsProgressive() {
			fn.Invoke(prog.Vertex, prog.Fragment, prog.Progressive)
		} else {
			fn.Invoke(prog.Vertex, prog.Fragment)
		}
	}()
	return nil
}

func optString(v js.Value) string {
	if v.Type() != js.TypeString {
		return ""
	}
	return v.String()
}

func consoleError(args ...any) {
	js.Global().Get("console").Call("error", args...)
}
