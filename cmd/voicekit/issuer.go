package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/VoiceKit/pkg/config"
	"github.com/AltairaLabs/VoiceKit/runtime/credentials"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	metrics "github.com/AltairaLabs/VoiceKit/runtime/metrics/prometheus"
	"github.com/AltairaLabs/VoiceKit/runtime/telemetry"
)

const readHeaderTimeout = 10 * time.Second

var issuerSettings = newSettings()

var issuerCmd = &cobra.Command{
	Use:   "issuer",
	Short: "Serve the session token issuer",
	Long: `Serve POST /api/session, exchanging an avatar selection for an ephemeral
realtime session secret. The upstream API key never leaves this process.
Prometheus metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, issuerSettings)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runIssuer(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(issuerCmd)

	f := issuerCmd.Flags()
	f.String(flagName(keyListen), "", "Listen address")
	f.String(flagName(keyOTLP), "", "OTLP/HTTP trace endpoint")
	if err := bindFlags(issuerSettings, f, keyListen, keyOTLP); err != nil {
		panic(err)
	}
}

// newIssuerServer assembles the issuer routes and the metrics endpoint.
func newIssuerServer(cfg *config.Config) (http.Handler, error) {
	cred, err := credentials.Resolve(credentials.ResolverConfig{
		KeyFile:   cfg.Issuer.APIKeyFile,
		KeyEnv:    cfg.Issuer.APIKeyEnv,
		ConfigDir: cfg.ConfigDir,
	})
	if err != nil {
		return nil, err
	}

	h := credentials.NewIssuerHandler(credentials.HandlerConfig{
		UpstreamURL:        cfg.Issuer.UpstreamURL,
		Credential:         cred,
		Model:              cfg.Issuer.SessionModel,
		TranscriptionModel: cfg.Issuer.TranscriptionModel,
		Instructions:       cfg.Issuer.Instructions,
		Voices:             cfg.Issuer.Voices,
		DefaultVoice:       cfg.Issuer.DefaultVoice,
		RatePerMinute:      cfg.Issuer.RatePerMinute,
		Burst:              cfg.Issuer.Burst,
		OnResult:           metrics.RecordIssuerResult,
	})

	mux := metrics.NewExporter("").Routes()
	mux.Handle(credentials.SessionPath, h.Routes())
	return mux, nil
}

func runIssuer(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	handler, err := newIssuerServer(cfg)
	if err != nil {
		return err
	}
	return serve(ctx, cfg.Issuer.ListenAddr, handler)
}

// serve runs handler on addr until ctx ends, then shuts down gracefully.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("Listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
