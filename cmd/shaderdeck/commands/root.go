package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/panyam/shaderdeck/config"
)

var (
	cfgFile string
	cfg     = ptr(config.DefaultConfig())
)

var rootCmd = &cobra.Command{
	Use:   "shaderdeck",
	Short: "shaderdeck inlines GLSL includes for WebGL slide decks",
	Long: `shaderdeck resolves #include directives in GLSL shaders the way the
slide deck's browser harness does, and checks, builds and serves decks whose
canvases reference those shaders.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.DefaultConfig()
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("base-url", defaults.BaseURL, "Prefix for shader and include names, relative to the page")
	rootCmd.PersistentFlags().Duration("timeout", defaults.Timeout, "Maximum time to wait for includes")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

// AddCommand allows adding subcommands from other files.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(config.LoadOptions{
		ConfigFile: cfgFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}
	cfg = loaded

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	slog.Debug("Loaded config", "base_url", cfg.BaseURL, "timeout", cfg.Timeout, "root", cfg.Root)
	return nil
}

func ptr[T any](v T) *T { return &v }
