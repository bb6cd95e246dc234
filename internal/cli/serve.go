package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/restock-alert/restock-alert/internal/klaviyo"
	"github.com/restock-alert/restock-alert/internal/page"
	"github.com/restock-alert/restock-alert/internal/server"
	"github.com/restock-alert/restock-alert/internal/store"
)

var (
	port         int
	settingsPage string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long: `Start the restock-alert relay server.

The server provides:
  - Widget settings script at /bis.js
  - Analytics beacon endpoint at /b
  - Subscription relay at /api/subscribe
  - Health check at /health and Prometheus metrics at /metrics

Merchant settings come from KLAVIYO_* environment variables, or from the
inline settings of a saved storefront page passed with --page.

Example:
  restock serve --port 8080`,
	RunE: runServe,
}

func init() {
	defaultPort := 8080
	if p := os.Getenv("RA_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	serveCmd.Flags().StringVar(&settingsPage, "page", "", "storefront page to read merchant settings from")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var p *page.Page
	if settingsPage != "" {
		var err error
		if p, err = loadPage(settingsPage, cmd.InOrStdin()); err != nil {
			return err
		}
	}
	cfg := merchantResolver(p).Resolve()

	// Open database
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	opts := []server.Option{
		server.WithMerchant(cfg),
		server.WithLogger(logger),
	}
	if cfg.HasAPIKey() {
		opts = append(opts, server.WithSubscriber(klaviyo.NewClient(cfg.PublicAPIKey)))
	}

	srv := server.New(s, port, opts...)
	return srv.Start()
}
