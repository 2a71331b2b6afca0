package cmd

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

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/publish"
	"github.com/MeKo-Tech/barscan/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the barcode API",
	Long: `Start an HTTP server that provides REST API endpoints for barcode reading.

The server provides the following endpoints:
  POST /decode/image - Decode an uploaded image (json, text, csv, yaml or overlay)
  POST /decode/pdf   - Decode the images embedded in an uploaded PDF
  POST /decode/batch - Decode several base64 images in one JSON request
  GET  /ws/decode    - Decode images sent over a WebSocket
  GET  /health       - Health check endpoint
  GET  /info         - Pipeline settings and decode statistics
  GET  /metrics      - Prometheus metrics

Examples:
  barscan serve
  barscan serve --port 8080
  barscan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("overlay-enable", true, "enable overlay image responses")
	serveCmd.Flags().String("overlay-color", "", "overlay box color (hex)")
	serveCmd.Flags().String("mismatch-color", "", "overlay box color for mismatched readings (hex)")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 100*1024*1024, "maximum data processed per day per client (bytes)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()

	serverConfig, err := serverConfigFromFlags(cmd, cfg)
	if err != nil {
		return err
	}
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}

	if cfg.Publish.Broker != "" {
		p, err := publish.Connect(cfg.ToPublishConfig())
		if err != nil {
			slog.Warn("Result publishing disabled", "error", err)
		} else {
			serverConfig.Publisher = p
		}
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	decodeServer, err := server.NewServer(serverConfig)
	if err != nil {
		if serverConfig.Publisher != nil {
			serverConfig.Publisher.Close()
		}
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	decodeServer.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(serverConfig.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(serverConfig.TimeoutSec) * time.Second,
	}

	go func() {
		slog.Info("Starting barcode server", "host", serverConfig.Host, "port", serverConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	decodeServer.Close()
	slog.Info("Graceful shutdown completed")
	return nil
}

// serverConfigFromFlags builds the server configuration from cfg with CLI
// flag overrides.
func serverConfigFromFlags(cmd *cobra.Command, cfg *config.Config) (server.Config, error) {
	pCfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return server.Config{}, err
	}

	sc := server.Config{
		Host:           stringFlag(cmd, "host", cfg.Server.Host),
		Port:           cfg.Server.Port,
		CORSOrigin:     stringFlag(cmd, "cors-origin", cfg.Server.CORSOrigin),
		MaxUploadMB:    int64(cfg.Server.MaxUploadMB),
		TimeoutSec:     cfg.Server.TimeoutSec,
		PipelineConfig: pCfg,
		Constraints:    cfg.ToImageConstraints(),
		OverlayEnabled: cfg.Server.OverlayEnabled,
		Overlay:        cfg.ToOverlayOptions(),
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit > 0,
			RequestsPerMinute: cfg.Server.RateLimit,
		},
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		sc.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("max-upload-size") {
		mb, _ := flags.GetInt("max-upload-size")
		sc.MaxUploadMB = int64(mb)
	}
	if flags.Changed("timeout") {
		sc.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("overlay-enable") {
		sc.OverlayEnabled, _ = flags.GetBool("overlay-enable")
	}
	sc.Overlay.Color = stringFlag(cmd, "overlay-color", sc.Overlay.Color)
	sc.Overlay.MismatchColor = stringFlag(cmd, "mismatch-color", sc.Overlay.MismatchColor)

	if flags.Changed("rate-limit-enabled") {
		sc.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if sc.RateLimit.Enabled {
		if sc.RateLimit.RequestsPerMinute == 0 || flags.Changed("requests-per-minute") {
			sc.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
		}
		sc.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
		sc.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
		sc.RateLimit.MaxDataPerDay, _ = flags.GetInt64("max-data-per-day")
	}

	if sc.Port < 1 || sc.Port > 65535 {
		return server.Config{}, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}
	if sc.MaxUploadMB <= 0 {
		return server.Config{}, fmt.Errorf("invalid max upload size: %d MB", sc.MaxUploadMB)
	}
	return sc, nil
}
