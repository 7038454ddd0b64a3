package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/icco/riffloop/internal/api"
)

var (
	serveListen  string
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve saved sessions over HTTP",
	Long: `Serve the session store as a REST API.

Sessions can be listed, read, written and deleted, and each session's bar grid
can be computed for a track length. API docs are at /swagger/index.html.

Example:
  riffloop serve --listen :8080
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "address to listen on (default from config, :8080)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "allowed CORS origin (repeatable, default any)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := openStore()
	if err != nil {
		return err
	}

	addr := cfg.Listen
	if serveListen != "" {
		addr = serveListen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(st, api.Options{AllowedOrigins: serveOrigins, Log: log})
	return srv.Run(ctx, addr)
}
