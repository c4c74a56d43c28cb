package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moneyocr/moneyocr/internal/pipeline"
	"github.com/moneyocr/moneyocr/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP recognition API",
	Long: `Start an HTTP server exposing /api/v1/recognize, /api/v1/recognize/batch,
/health and /metrics. Model sessions are loaded once and shared across
requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pipeline.Shared(buildPipeline)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		srv := server.New(cfg.Server, p)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
			return err
		}
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().String("host", "0.0.0.0", "listen host")
	serveCmd.Flags().Int("port", 8000, "listen port")
	serveCmd.Flags().Int("max-upload-mb", 10, "maximum upload size in megabytes")

	_ = v.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("server.max_upload_mb", serveCmd.Flags().Lookup("max-upload-mb"))

	rootCmd.AddCommand(serveCmd)
}
