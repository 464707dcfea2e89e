package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agora-commons/agora/auth"
	"github.com/agora-commons/agora/config"
	"github.com/agora-commons/agora/content"
	"github.com/agora-commons/agora/server"
	"github.com/agora-commons/agora/store"
	"github.com/agora-commons/agora/webhook"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agora API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to agora.yaml")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("agora-server"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("connect NATS %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Drain()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("init JetStream: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	identities, err := store.NewNATS(setupCtx, js)
	if err != nil {
		return fmt.Errorf("init identity store: %w", err)
	}
	records, err := content.NewNATS(setupCtx, js)
	if err != nil {
		return fmt.Errorf("init content store: %w", err)
	}

	gate := webhook.NewGate([]byte(cfg.Webhook.Secret), cfg.Webhook.AllowUnverified, log)
	deliveries, err := webhook.NewHandler(gate, nc, log)
	if err != nil {
		return fmt.Errorf("init webhook handler: %w", err)
	}

	srv := server.New(
		auth.NewVerifier(identities, log),
		auth.NewRotator(identities, auth.RotatorConfig{
			MaxPastSkew:   cfg.Auth.MaxPastSkew,
			MaxFutureSkew: cfg.Auth.MaxFutureSkew,
		}, log),
		identities,
		records,
		deliveries,
		log,
	)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("agora listening", zap.String("addr", cfg.Server.Addr))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
