package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/hrdesk/internal/answer"
	"github.com/nextlevelbuilder/hrdesk/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/hrdesk/internal/config"
	"github.com/nextlevelbuilder/hrdesk/internal/docs"
	"github.com/nextlevelbuilder/hrdesk/internal/docs/s3docs"
	"github.com/nextlevelbuilder/hrdesk/internal/gateway"
	"github.com/nextlevelbuilder/hrdesk/internal/handlers"
	httpapi "github.com/nextlevelbuilder/hrdesk/internal/http"
	"github.com/nextlevelbuilder/hrdesk/internal/identity"
	"github.com/nextlevelbuilder/hrdesk/internal/retention"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
	"github.com/nextlevelbuilder/hrdesk/internal/tracing"
)

const stopTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook gateway (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	var directory identity.Directory = stores.Employees
	var dirFile *identity.FileDirectory
	if cfg.Directory.Source == "file" {
		dirFile, err = identity.LoadFile(cfg.Directory.File)
		if err != nil {
			return err
		}
		directory = dirFile
		slog.Info("directory loaded", "path", cfg.Directory.File, "employees", dirFile.Len())
	}

	objects, err := s3docs.New(ctx, s3docs.Options{
		Bucket:          cfg.Documents.Bucket,
		Region:          cfg.Documents.Region,
		Endpoint:        cfg.Documents.Endpoint,
		UsePathStyle:    cfg.Documents.UsePathStyle,
		AccessKeyID:     cfg.Documents.AccessKeyID,
		SecretAccessKey: cfg.Documents.SecretAccessKey,
	})
	if err != nil {
		return err
	}
	documents := docs.NewCache(objects, config.Duration(cfg.Documents.ListCacheTTL, 2*time.Minute))

	engine, err := answer.New(answer.Options{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		Timeout:      config.Duration(cfg.LLM.Timeout, 0),
		Attempts:     cfg.LLM.MaxRetries,
		RetryBackoff: config.Duration(cfg.LLM.RetryBackoff, 0),
	})
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	hs, err := handlers.All(handlers.Deps{
		Docs:        documents,
		Engine:      engine,
		Notifier:    notifier,
		Queries:     stores.Queries,
		PresignTTL:  config.Duration(cfg.Documents.PresignTTL, 0),
		MaxSelect:   cfg.LLM.MaxSelect,
		MaxQueryLen: cfg.Router.MaxQueryChars,
	})
	if err != nil {
		return err
	}

	// The bridge relays webhooks into the router, which needs the channel
	// to reply; rt is assigned before the channel starts.
	var rt *router.Router
	ch, err := whatsapp.New(cfg.WhatsApp, func(ctx context.Context, body []byte) {
		if _, err := rt.HandleWebhook(ctx, body); err != nil {
			slog.Debug("bridged webhook", "error", err)
		}
	})
	if err != nil {
		return err
	}
	rt, err = router.New(router.Options{
		Directory:       directory,
		Sessions:        stores.Sessions,
		Processed:       stores.Processed,
		Messenger:       ch,
		BotNumber:       cfg.WhatsApp.BotNumber,
		Cooldown:        config.Duration(cfg.Router.Cooldown, 0),
		DedupTTL:        config.Duration(cfg.Router.DedupTTL, 0),
		ConflictRetries: cfg.Router.ConflictRetries,
	}, hs...)
	if err != nil {
		return err
	}

	webhook := httpapi.NewWebhookHandler(rt, httpapi.WebhookOptions{
		VerifyToken:  cfg.WhatsApp.VerifyToken,
		AppSecret:    cfg.WhatsApp.AppSecret,
		MaxBodyBytes: cfg.Gateway.MaxBodyBytes,
	})
	if cfg.WhatsApp.AppSecret == "" {
		slog.Warn("HRDESK_WHATSAPP_APP_SECRET not set: webhook signatures are not verified")
	}
	var job *retention.Job
	if cfg.Retention.Enabled {
		if job, err = retention.New(stores.Pruner, cfg.Retention); err != nil {
			return err
		}
	}

	server := gateway.NewServer(cfg.Gateway, webhook)
	server.AddProbe("whatsapp", ch.IsRunning)

	if err := ch.Start(ctx); err != nil {
		return fmt.Errorf("start %s transport: %w", ch.Name(), err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := ch.Stop(stopCtx); err != nil {
			slog.Warn("transport stop", "channel", ch.Name(), "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	if dirFile != nil {
		g.Go(func() error { return dirFile.Watch(gctx) })
	}
	if job != nil {
		g.Go(func() error { return job.Run(gctx) })
	}

	slog.Info("hrdesk started", "version", Version, "transport", ch.Name(), "store", cfg.Database.Driver)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("hrdesk stopped")
	return nil
}
