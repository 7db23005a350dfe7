package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/panyam/shaderdeck/deck"
	"github.com/panyam/shaderdeck/loader"
	"github.com/panyam/shaderdeck/watch"
)

// ManifestFile lists the programs written by build.
const ManifestFile = "programs.json"

// ManifestEntry names the files written for one program, relative to the
// output directory.
type ManifestEntry struct {
	Name        string `json:"name"`
	Vertex      string `json:"vertex"`
	Fragment    string `json:"fragment"`
	Progressive string `json:"progressive,omitempty"`
}

var buildCmd = &cobra.Command{
	Use:   "build <deck.html>",
	Short: "Writes the inlined shaders of a deck to a directory",
	Long: `The build command resolves every program of a deck and writes its inlined
sources to the output directory as <name>.vert, <name>.frag and, for
progressive programs, <name>.progressive.frag, along with a programs.json
manifest.  With --watch it rebuilds whenever a shader or the deck changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deckPath := args[0]
		out := cmd.OutOrStdout()
		if err := buildDeck(cmd.Context(), out, deckPath, cfg.OutDir); err != nil {
			if !cfg.Watch {
				return err
			}
			fmt.Fprintf(out, "%s %v\n", color.RedString("❌"), err)
		}
		if !cfg.Watch {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchDeck(ctx, out, deckPath, cfg.OutDir)
	},
}

func buildDeck(ctx context.Context, w io.Writer, deckPath, outDir string) error {
	specs, err := deck.ScanFile(deckPath)
	if err != nil {
		return err
	}

	programs := loader.NewProgramLoader(newFetcher(filepath.Dir(deckPath)), sessionOptions()...)
	result := programs.LoadAll(ctx, specs)
	if result.Errors.HasErrors() {
		result.Errors.PrintErrors(w)
		return fmt.Errorf("unable to build %s: %w", deckPath, result.Errors.Err())
	}

	dest := loader.NewLocalFS(outDir)
	manifest := make([]ManifestEntry, 0, len(result.Programs))
	for _, prog := range result.Programs {
		entry := ManifestEntry{
			Name:     prog.Spec.Name,
			Vertex:   prog.Spec.Name + ".vert",
			Fragment: prog.Spec.Name + ".frag",
		}
		files := map[string]string{entry.Vertex: prog.Vertex, entry.Fragment: prog.Fragment}
		if prog.Spec.IsProgressive() {
			entry.Progressive = prog.Spec.Name + ".progressive.frag"
			files[entry.Progressive] = prog.Progressive
		}
		for name, text := range files {
			if err := dest.WriteFile(name, []byte(text)); err != nil {
				return fmt.Errorf("writing %s: %w", name, err)
			}
		}
		manifest = append(manifest, entry)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := dest.WriteFile(ManifestFile, data); err != nil {
		return fmt.Errorf("writing %s: %w", ManifestFile, err)
	}
	fmt.Fprintf(w, "%s Built %d programs into %s\n", color.GreenString("✅"), len(manifest), outDir)
	return nil
}

// watchDeck rebuilds the deck whenever a file under its shader root
// changes.  Changes inside outDir are ignored.
func watchDeck(ctx context.Context, w io.Writer, deckPath, outDir string) error {
	root := filepath.Dir(deckPath)
	if !strings.Contains(cfg.BaseURL, "://") {
		root = filepath.Join(root, cfg.BaseURL)
	}
	absOut, _ := filepath.Abs(outDir)

	watcher, err := watch.New(watch.Config{
		Root: root,
		OnChange: func(ctx context.Context, changed []string) {
			var relevant []string
			for _, path := range changed {
				abs, _ := filepath.Abs(filepath.Join(root, path))
				if !isWithin(absOut, abs) {
					relevant = append(relevant, path)
				}
			}
			if len(relevant) == 0 {
				return
			}
			slog.Info("Rebuilding deck", "deck", deckPath, "changed", relevant)
			if err := buildDeck(ctx, w, deckPath, outDir); err != nil {
				fmt.Fprintf(w, "%s %v\n", color.RedString("❌"), err)
			}
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "👀 Watching %s for changes (Ctrl+C to stop)\n", root)
	return watcher.Run(ctx)
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && filepath.IsLocal(rel)
}

func init() {
	buildCmd.Flags().StringP("out-dir", "o", "dist", "Directory to write the inlined shaders to")
	buildCmd.Flags().BoolP("watch", "w", false, "Rebuild when shaders or the deck change")
	AddCommand(buildCmd)
}
