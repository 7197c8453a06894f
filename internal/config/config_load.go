package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			MaxBodyBytes: 1 << 20,
		},
		WhatsApp: WhatsAppConfig{
			Transport:  "cloud",
			APIBaseURL: "https://graph.facebook.com",
			APIVersion: "v21.0",
			SendRate:   20,
			SendBurst:  5,
			Timeout:    "15s",
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "~/.hrdesk/hrdesk.db",
		},
		Directory: DirectoryConfig{
			Source: "database",
		},
		Documents: DocumentsConfig{
			Region:       "us-east-1",
			PresignTTL:   "1h",
			ListCacheTTL: "2m",
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.x.ai/v1",
			Model:        "grok-3-mini",
			Timeout:      "30s",
			MaxRetries:   3,
			RetryBackoff: "2s",
			MaxSelect:    3,
		},
		Email: EmailConfig{
			Port: 587,
		},
		Events: EventsConfig{
			Exchange:      "hrdesk",
			DialAttempts:  5,
			DialBaseDelay: "1s",
		},
		Router: RouterConfig{
			Cooldown:        "5s",
			DedupTTL:        "10m",
			ConflictRetries: 2,
			MaxQueryChars:   1000,
		},
		Retention: RetentionConfig{
			Schedule:          "17 3 * * *",
			ProcessedMaxAge:   "720h",
			SessionIdleMaxAge: "2160h",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "hrdesk",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Database.SQLitePath = ExpandHome(cfg.Database.SQLitePath)
	cfg.Directory.File = ExpandHome(cfg.Directory.File)
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	// Secrets
	envStr("HRDESK_WHATSAPP_TOKEN", &c.WhatsApp.AccessToken)
	envStr("HRDESK_WHATSAPP_VERIFY_TOKEN", &c.WhatsApp.VerifyToken)
	envStr("HRDESK_WHATSAPP_APP_SECRET", &c.WhatsApp.AppSecret)
	envStr("HRDESK_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("HRDESK_S3_ACCESS_KEY_ID", &c.Documents.AccessKeyID)
	envStr("HRDESK_S3_SECRET_ACCESS_KEY", &c.Documents.SecretAccessKey)
	envStr("HRDESK_LLM_API_KEY", &c.LLM.APIKey)
	envStr("HRDESK_SMTP_PASSWORD", &c.Email.Password)
	envStr("HRDESK_AMQP_URL", &c.Events.URL)

	// WhatsApp
	envStr("HRDESK_WHATSAPP_TRANSPORT", &c.WhatsApp.Transport)
	envStr("HRDESK_WHATSAPP_PHONE_NUMBER_ID", &c.WhatsApp.PhoneNumberID)
	envStr("HRDESK_WHATSAPP_BOT_NUMBER", &c.WhatsApp.BotNumber)
	envStr("HRDESK_WHATSAPP_BRIDGE_URL", &c.WhatsApp.BridgeURL)

	// Gateway host/port
	envStr("HRDESK_HOST", &c.Gateway.Host)
	if v := os.Getenv("HRDESK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	// Storage
	envStr("HRDESK_DB_DRIVER", &c.Database.Driver)
	envStr("HRDESK_SQLITE_PATH", &c.Database.SQLitePath)
	envStr("HRDESK_DIRECTORY_FILE", &c.Directory.File)
	if c.Directory.File != "" && os.Getenv("HRDESK_DIRECTORY_FILE") != "" {
		c.Directory.Source = "file"
	}
	envStr("HRDESK_S3_BUCKET", &c.Documents.Bucket)
	envStr("HRDESK_S3_REGION", &c.Documents.Region)
	envStr("HRDESK_S3_ENDPOINT", &c.Documents.Endpoint)

	// LLM
	envStr("HRDESK_LLM_BASE_URL", &c.LLM.BaseURL)
	envStr("HRDESK_LLM_MODEL", &c.LLM.Model)

	// Email: auto-enable when a password is provided
	envStr("HRDESK_SMTP_HOST", &c.Email.Host)
	envStr("HRDESK_SMTP_USER", &c.Email.Username)
	if c.Email.Password != "" && c.Email.Host != "" {
		c.Email.Enabled = true
	}

	// Events: auto-enable when a broker URL is provided
	if c.Events.URL != "" {
		c.Events.Enabled = true
	}

	// Telemetry
	envStr("HRDESK_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("HRDESK_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("HRDESK_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envBool("HRDESK_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envBool("HRDESK_TELEMETRY_INSECURE", &c.Telemetry.Insecure)

	// Logging
	envStr("HRDESK_LOG_FORMAT", &c.Logging.Format)
	envStr("HRDESK_LOG_LEVEL", &c.Logging.Level)
}

// MaskedCopy returns a deep copy with secrets replaced, safe for printing.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Secret fields are tagged json:"-" so the round-trip drops them;
	// they are re-added masked below so operators can see which are set.
	data, err := json.Marshal(c)
	if err != nil {
		return Default()
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return Default()
	}

	cp.WhatsApp.AccessToken = mask(c.WhatsApp.AccessToken)
	cp.WhatsApp.VerifyToken = mask(c.WhatsApp.VerifyToken)
	cp.WhatsApp.AppSecret = mask(c.WhatsApp.AppSecret)
	cp.Database.PostgresDSN = mask(c.Database.PostgresDSN)
	cp.Documents.AccessKeyID = mask(c.Documents.AccessKeyID)
	cp.Documents.SecretAccessKey = mask(c.Documents.SecretAccessKey)
	cp.LLM.APIKey = mask(c.LLM.APIKey)
	cp.Email.Password = mask(c.Email.Password)
	cp.Events.URL = mask(c.Events.URL)
	for k := range cp.Telemetry.Headers {
		cp.Telemetry.Headers[k] = "***"
	}
	return cp
}

// Secrets lists secret settings with masked values, in a stable order.
func (c *Config) Secrets() [][2]string {
	m := c.MaskedCopy()
	return [][2]string{
		{"HRDESK_WHATSAPP_TOKEN", m.WhatsApp.AccessToken},
		{"HRDESK_WHATSAPP_VERIFY_TOKEN", m.WhatsApp.VerifyToken},
		{"HRDESK_WHATSAPP_APP_SECRET", m.WhatsApp.AppSecret},
		{"HRDESK_POSTGRES_DSN", m.Database.PostgresDSN},
		{"HRDESK_S3_ACCESS_KEY_ID", m.Documents.AccessKeyID},
		{"HRDESK_S3_SECRET_ACCESS_KEY", m.Documents.SecretAccessKey},
		{"HRDESK_LLM_API_KEY", m.LLM.APIKey},
		{"HRDESK_SMTP_PASSWORD", m.Email.Password},
		{"HRDESK_AMQP_URL", m.Events.URL},
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
