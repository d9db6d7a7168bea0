package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/dmfeed/internal/server"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the message store over HTTP",
	Long: `Serve the local message store as a JSON API so remote clients
(backend.mode: http) can page history, send and delete messages.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := GetConfig()
		database, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		addr := cfg.Server.Addr
		if strings.TrimSpace(serveAddr) != "" {
			addr = strings.TrimSpace(serveAddr)
		}

		srv := server.New(database, server.Config{
			Addr:           addr,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
		})
		return srv.ListenAndServe(ctx)
	},
}
