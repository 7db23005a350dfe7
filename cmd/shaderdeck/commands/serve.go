package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/panyam/shaderdeck/config"
	"github.com/panyam/shaderdeck/watch"
	"github.com/panyam/shaderdeck/web"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deck dev server",
	Long: `Start a development server for a slide deck.

The server provides:
- the deck's static files from --root
- /shaders/<path> with every #include inlined
- /api/deck?file=index.html listing the deck's programs with inlined sources
- /ws/reload, a websocket that tells open pages to reload (with --watch)

Example:
  shaderdeck serve --root slides --addr :9090 --watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := web.NewServer(*cfg, nil)
		defer srv.Close()
		server := &http.Server{
			Addr:    cfg.Addr,
			Handler: srv.Handler(),
		}

		baseURL := fmt.Sprintf("http://%s", displayAddr(cfg.Addr))
		fmt.Printf("🚀 shaderdeck dev server\n")
		fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Printf("📂 Deck root:    %s\n", cfg.Root)
		fmt.Printf("🌐 Deck:         %s/\n", baseURL)
		fmt.Printf("🎨 Shaders:      %s/shaders/<path>\n", baseURL)
		fmt.Printf("🛠️  Programs:     %s/api/deck?file=index.html\n", baseURL)
		if cfg.Watch {
			fmt.Printf("📡 Live reload:  ws://%s/ws/reload\n", displayAddr(cfg.Addr))
		}
		fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

		srvErr := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()

		if cfg.Watch {
			watcher, err := watch.New(watch.Config{
				Root: cfg.Root,
				OnChange: func(ctx context.Context, changed []string) {
					srv.Reload(changed)
				},
			})
			if err != nil {
				return err
			}
			go func() {
				if err := watcher.Run(ctx); err != nil {
					slog.Error("Watcher stopped", "error", err)
				}
			}()
		}

		select {
		case err := <-srvErr:
			return fmt.Errorf("server failed to start: %w", err)
		case <-ctx.Done():
		}

		fmt.Println("\n🛑 Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("⚠️  Server shutdown error: %v\n", err)
			return err
		}
		fmt.Println("✅ Server stopped gracefully")
		return nil
	},
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func init() {
	defaults := config.DefaultConfig()
	serveCmd.Flags().String("addr", defaults.Addr, "Address to listen on")
	serveCmd.Flags().String("root", defaults.Root, "Directory to serve the deck from")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload open pages when deck files change")
	AddCommand(serveCmd)
}
