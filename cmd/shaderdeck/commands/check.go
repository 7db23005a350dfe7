package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/panyam/shaderdeck/deck"
	"github.com/panyam/shaderdeck/loader"
)

// ErrCheckFailed is returned when at least one program or shader failed.
var ErrCheckFailed = errors.New("check failed")

var checkCmd = &cobra.Command{
	Use:   "check <deck.html|shader...>",
	Short: "Resolves the includes of decks and shaders",
	Long: `The check command resolves every program of the given decks and every
given shader, printing one line per program.  Deck paths end in .html; their
shader names are resolved relative to the deck's directory.  It exits with a
non-zero status if anything could not be resolved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !runCheck(cmd.Context(), cmd.OutOrStdout(), args) {
			return ErrCheckFailed
		}
		return nil
	},
}

func runCheck(ctx context.Context, w io.Writer, paths []string) (success bool) {
	success = true
	for _, path := range paths {
		if isDeck(path) {
			success = checkDeck(ctx, w, path) && success
		} else {
			success = checkShader(ctx, w, path) && success
		}
	}
	return
}

func checkDeck(ctx context.Context, w io.Writer, path string) bool {
	specs, err := deck.ScanFile(path)
	if err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", color.RedString("❌"), path, err)
		return false
	}
	fmt.Fprintf(w, "%s (%d programs)\n", color.CyanString(path), len(specs))
	programs := loader.NewProgramLoader(newFetcher(filepath.Dir(path)), sessionOptions()...)
	return programs.LoadAndReport(ctx, w, specs...)
}

func checkShader(ctx context.Context, w io.Writer, name string) bool {
	if _, err := inlineShader(ctx, name); err != nil {
		fmt.Fprintf(w, "%s %v\n", color.RedString("❌"), err)
		return false
	}
	fmt.Fprintf(w, "%s %s\n", color.GreenString("✅"), name)
	return true
}

func init() {
	AddCommand(checkCmd)
}
