package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gspace/internal/adapters/driving/webhook"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driving"
	"github.com/custodia-labs/gspace/internal/core/services"
	"github.com/custodia-labs/gspace/internal/logger"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Receive Google Workspace push notifications",
}

var webhookServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver",
	Long: `Run an HTTP receiver for Pub/Sub pushes and Calendar or Drive channel
notifications.

Endpoints:
  POST /webhook   notification deliveries, rate limited per client IP
  GET  /healthz   liveness
  GET  /metrics   Prometheus metrics

Stored tokens are refreshed in the background while the receiver runs.
Changes to the config file update the verification token without a restart.

Examples:
  gspace webhook serve --addr :8443
  gspace webhook serve --rpm 120`,
	RunE: runWebhookServe,
}

var (
	webhookAddr        string
	webhookRPM         int
	webhookMaintenance time.Duration
)

func init() {
	webhookServeCmd.Flags().StringVar(&webhookAddr, "addr", "", "listen address (default from settings)")
	webhookServeCmd.Flags().IntVar(&webhookRPM, "rpm", 0, "deliveries per minute per client IP (default from settings)")
	webhookServeCmd.Flags().DurationVar(&webhookMaintenance, "token-maintenance", services.DefaultMaintenanceInterval, "interval between token refresh passes")

	webhookCmd.AddCommand(webhookServeCmd)
	rootCmd.AddCommand(webhookCmd)
}

// tokenSetter is implemented by services.WebhookHandler.
type tokenSetter interface {
	SetVerificationToken(token string)
}

// fallbackRegistrar is implemented by services.WebhookHandler.
type fallbackRegistrar interface {
	RegisterFallback(handler driving.EventHandler)
}

func runWebhookServe(cmd *cobra.Command, _ []string) error {
	if webhookService == nil {
		return errors.New("webhook service not configured")
	}
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	cfg := webhook.ConfigFromSettings(settings.Webhook)
	if webhookAddr != "" {
		cfg.Addr = webhookAddr
	}
	if webhookRPM > 0 {
		cfg.RequestsPerMinute = webhookRPM
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	log := logger.WithComponent("gspace.webhook")
	if r, ok := webhookService.(fallbackRegistrar); ok {
		r.RegisterFallback(func(_ context.Context, event domain.WebhookEvent) error {
			log.Info().
				Str("event_type", string(event.Type)).
				Str("resource_id", event.ResourceID).
				Msg("notification received")
			return nil
		})
	}

	if tokenManager != nil {
		maintainer := services.NewTokenMaintainer(tokenManager,
			services.WithInterval(webhookMaintenance),
			services.WithCleanup(true))
		done := make(chan struct{})
		go func() {
			defer close(done)
			// Start returns ctx.Err() on shutdown.
			_ = maintainer.Start(ctx)
		}()
		defer func() {
			maintainer.Stop()
			cancel()
			<-done
		}()
	}

	if configStore != nil {
		err := configStore.Watch(ctx, func() {
			updated, err := settingsService.Get()
			if err != nil {
				log.Warn().Err(err).Msg("reading reloaded settings failed")
				return
			}
			if s, ok := webhookService.(tokenSetter); ok {
				s.SetVerificationToken(updated.Webhook.VerificationToken)
				log.Info().Msg("verification token reloaded")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	cmd.Printf("Webhook receiver listening on %s\n", cfg.Addr)
	return webhook.NewServer(webhookService, cfg).Run(ctx)
}
