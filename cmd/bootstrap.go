package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/hrdesk/internal/config"
	"github.com/nextlevelbuilder/hrdesk/internal/logging"
	"github.com/nextlevelbuilder/hrdesk/internal/notify"
	"github.com/nextlevelbuilder/hrdesk/internal/store"
	"github.com/nextlevelbuilder/hrdesk/internal/store/memstore"
	"github.com/nextlevelbuilder/hrdesk/internal/store/pg"
	"github.com/nextlevelbuilder/hrdesk/internal/store/sqlite"
)

// loadConfig reads the config file and installs the process logger.
// Validation is left to commands that need the full service.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, nil
}

// openStores opens the backend selected by database.driver.
func openStores(cfg *config.Config) (*store.Stores, error) {
	switch cfg.Database.Driver {
	case "", "sqlite":
		s, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("store opened", "driver", "sqlite", "path", cfg.Database.SQLitePath)
		return s.Stores(), nil
	case "postgres":
		if cfg.Database.PostgresDSN == "" {
			return nil, fmt.Errorf("HRDESK_POSTGRES_DSN environment variable is not set")
		}
		s, err := pg.NewPGStores(cfg.Database.PostgresDSN)
		if err != nil {
			return nil, err
		}
		slog.Info("store opened", "driver", "postgres")
		return s, nil
	case "memory":
		slog.Warn("using in-memory store: sessions are lost on restart")
		return memstore.New().Stores(), nil
	default:
		return nil, fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}
}

// buildNotifier combines the configured delivery channels. cleanup closes
// the AMQP connection, if any.
func buildNotifier(ctx context.Context, cfg *config.Config) (n notify.Notifier, cleanup func(), err error) {
	var out notify.Multi
	cleanup = func() {}

	if cfg.Email.Enabled {
		m, err := notify.NewMailer(notify.EmailOptions{
			Host:       cfg.Email.Host,
			Port:       cfg.Email.Port,
			Username:   cfg.Email.Username,
			Password:   cfg.Email.Password,
			From:       cfg.Email.From,
			FeedbackTo: cfg.Email.FeedbackTo,
			HRTo:       cfg.Email.HRTo,
		})
		if err != nil {
			return nil, cleanup, err
		}
		out = append(out, m)
		slog.Info("email notifications enabled", "host", cfg.Email.Host)
	}

	if cfg.Events.Enabled {
		conn, err := notify.DialWithRetry(ctx, notify.DialOptions{
			URL:      cfg.Events.URL,
			Attempts: cfg.Events.DialAttempts,
			Delay:    config.Duration(cfg.Events.DialBaseDelay, 0),
		})
		if err != nil {
			return nil, cleanup, err
		}
		pub, err := notify.NewAMQPPublisher(conn, cfg.Events.Exchange)
		if err != nil {
			conn.Close()
			return nil, cleanup, err
		}
		cleanup = func() {
			if err := pub.Close(); err != nil {
				slog.Warn("amqp close", "error", err)
			}
		}
		out = append(out, notify.NewEvents(pub))
		slog.Info("event publishing enabled", "exchange", cfg.Events.Exchange)
	}

	switch len(out) {
	case 0:
		slog.Warn("no notification channel configured: feedback and HR tickets will not be delivered")
		return notify.Nop{}, cleanup, nil
	case 1:
		return out[0], cleanup, nil
	default:
		return out, cleanup, nil
	}
}
