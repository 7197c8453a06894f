package config

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Config is the root configuration for the HR desk service.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Database  DatabaseConfig  `json:"database"`
	Directory DirectoryConfig `json:"directory,omitempty"`
	Documents DocumentsConfig `json:"documents"`
	LLM       LLMConfig       `json:"llm"`
	Email     EmailConfig     `json:"email,omitempty"`
	Events    EventsConfig    `json:"events,omitempty"`
	Router    RouterConfig    `json:"router,omitempty"`
	Retention RetentionConfig `json:"retention,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
	mu        sync.RWMutex
}

// GatewayConfig controls the inbound HTTP listener.
type GatewayConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	MaxBodyBytes int64  `json:"max_body_bytes,omitempty"` // webhook body cap (default 1 MiB)
}

// WhatsAppConfig configures the messaging gateway.
type WhatsAppConfig struct {
	Transport     string  `json:"transport,omitempty"` // "cloud" (default) or "bridge"
	APIBaseURL    string  `json:"api_base_url,omitempty"`
	APIVersion    string  `json:"api_version,omitempty"`
	PhoneNumberID string  `json:"phone_number_id,omitempty"`
	BotNumber     string  `json:"bot_number,omitempty"` // inbound messages from this number are ignored
	BridgeURL     string  `json:"bridge_url,omitempty"`
	SendRate      float64 `json:"send_rate,omitempty"`  // outbound messages per second
	SendBurst     int     `json:"send_burst,omitempty"` // outbound burst size
	Timeout       string  `json:"timeout,omitempty"`    // per request, Go duration

	AccessToken string `json:"-"` // from env HRDESK_WHATSAPP_TOKEN only
	VerifyToken string `json:"-"` // from env HRDESK_WHATSAPP_VERIFY_TOKEN only
	AppSecret   string `json:"-"` // from env HRDESK_WHATSAPP_APP_SECRET only
}

// DatabaseConfig selects the session/identity store backend.
type DatabaseConfig struct {
	Driver      string `json:"driver,omitempty"`      // "sqlite" (default), "postgres" or "memory"
	SQLitePath  string `json:"sqlite_path,omitempty"` // default ~/.hrdesk/hrdesk.db
	PostgresDSN string `json:"-"`                     // from env HRDESK_POSTGRES_DSN only
}

// DirectoryConfig selects where employee identities come from.
type DirectoryConfig struct {
	Source string `json:"source,omitempty"` // "database" (default) or "file"
	File   string `json:"file,omitempty"`   // YAML directory, watched for changes
}

// DocumentsConfig configures the object store holding employee and policy documents.
type DocumentsConfig struct {
	Bucket       string `json:"bucket"`
	Region       string `json:"region,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"` // S3-compatible endpoint override
	UsePathStyle bool   `json:"use_path_style,omitempty"`
	PresignTTL   string `json:"presign_ttl,omitempty"`    // default "1h"
	ListCacheTTL string `json:"list_cache_ttl,omitempty"` // default "2m", "0" disables

	AccessKeyID     string `json:"-"` // from env HRDESK_S3_ACCESS_KEY_ID only
	SecretAccessKey string `json:"-"` // from env HRDESK_S3_SECRET_ACCESS_KEY only
}

// LLMConfig configures the OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL      string `json:"base_url,omitempty"`
	Model        string `json:"model,omitempty"`
	Timeout      string `json:"timeout,omitempty"`       // per attempt
	MaxRetries   int    `json:"max_retries,omitempty"`   // total attempts (default 3)
	RetryBackoff string `json:"retry_backoff,omitempty"` // initial backoff, doubled per attempt (default "2s")
	MaxSelect    int    `json:"max_select,omitempty"`    // documents picked per query (default 3)

	APIKey string `json:"-"` // from env HRDESK_LLM_API_KEY only
}

// EmailConfig configures SMTP delivery of feedback and HR tickets.
type EmailConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	From       string `json:"from,omitempty"`
	Username   string `json:"username,omitempty"`
	FeedbackTo string `json:"feedback_to,omitempty"`
	HRTo       string `json:"hr_to,omitempty"`

	Password string `json:"-"` // from env HRDESK_SMTP_PASSWORD only
}

// EventsConfig configures AMQP publishing of feedback and ticket events.
type EventsConfig struct {
	Enabled       bool   `json:"enabled,omitempty"`
	Exchange      string `json:"exchange,omitempty"`
	DialAttempts  int    `json:"dial_attempts,omitempty"`
	DialBaseDelay string `json:"dial_base_delay,omitempty"`

	URL string `json:"-"` // from env HRDESK_AMQP_URL only
}

// RouterConfig tunes the dispatch pipeline.
type RouterConfig struct {
	Cooldown        string `json:"cooldown,omitempty"`         // text cooldown per sender (default "5s")
	DedupTTL        string `json:"dedup_ttl,omitempty"`        // in-process duplicate window (default "10m")
	ConflictRetries int    `json:"conflict_retries,omitempty"` // turn retries on session write conflict (default 2)
	MaxQueryChars   int    `json:"max_query_chars,omitempty"`  // free-text cap (default 1000)
}

// RetentionConfig controls pruning of the processed-message log and idle sessions.
type RetentionConfig struct {
	Enabled           bool   `json:"enabled,omitempty"`
	Schedule          string `json:"schedule,omitempty"`             // cron expression (default "17 3 * * *")
	ProcessedMaxAge   string `json:"processed_max_age,omitempty"`    // default "720h"
	SessionIdleMaxAge string `json:"session_idle_max_age,omitempty"` // default "2160h", "0" keeps sessions
}

// TelemetryConfig configures OpenTelemetry OTLP export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext transport for local collectors
	ServiceName string            `json:"service_name,omitempty"` // default "hrdesk"
	Headers     map[string]string `json:"headers,omitempty"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"` // "text" (default) or "json"
	Level     string `json:"level,omitempty"`  // debug, info, warn, error
	AddSource bool   `json:"add_source,omitempty"`
}

// Validate checks that the settings required by the selected backends are present.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var problems []string
	switch c.WhatsApp.Transport {
	case "", "cloud":
		if c.WhatsApp.PhoneNumberID == "" {
			problems = append(problems, "whatsapp.phone_number_id is required for the cloud transport")
		}
		if c.WhatsApp.AccessToken == "" {
			problems = append(problems, "HRDESK_WHATSAPP_TOKEN is not set")
		}
	case "bridge":
		if c.WhatsApp.BridgeURL == "" {
			problems = append(problems, "whatsapp.bridge_url is required for the bridge transport")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown whatsapp.transport %q", c.WhatsApp.Transport))
	}
	if c.WhatsApp.VerifyToken == "" {
		problems = append(problems, "HRDESK_WHATSAPP_VERIFY_TOKEN is not set")
	}

	switch c.Database.Driver {
	case "", "sqlite", "memory":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			problems = append(problems, "HRDESK_POSTGRES_DSN is not set")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Directory.Source {
	case "", "database":
	case "file":
		if c.Directory.File == "" {
			problems = append(problems, "directory.file is required when directory.source is file")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown directory.source %q", c.Directory.Source))
	}

	if c.Documents.Bucket == "" {
		problems = append(problems, "documents.bucket is required")
	}
	if c.LLM.APIKey == "" {
		problems = append(problems, "HRDESK_LLM_API_KEY is not set")
	}
	if c.Email.Enabled && (c.Email.Host == "" || c.Email.From == "") {
		problems = append(problems, "email.host and email.from are required when email is enabled")
	}
	if c.Events.Enabled && c.Events.URL == "" {
		problems = append(problems, "HRDESK_AMQP_URL is not set")
	}

	for name, v := range map[string]string{
		"whatsapp.timeout":               c.WhatsApp.Timeout,
		"documents.presign_ttl":          c.Documents.PresignTTL,
		"documents.list_cache_ttl":       c.Documents.ListCacheTTL,
		"llm.timeout":                    c.LLM.Timeout,
		"llm.retry_backoff":              c.LLM.RetryBackoff,
		"events.dial_base_delay":         c.Events.DialBaseDelay,
		"router.cooldown":                c.Router.Cooldown,
		"router.dedup_ttl":               c.Router.DedupTTL,
		"retention.processed_max_age":    c.Retention.ProcessedMaxAge,
		"retention.session_idle_max_age": c.Retention.SessionIdleMaxAge,
	} {
		if _, err := ParseDuration(v, 0); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseDuration parses a Go duration string, returning def when s is empty.
// "0" is accepted and means disabled.
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Duration is ParseDuration that falls back to def on invalid input.
// Values have already passed Validate by the time callers use it.
func Duration(s string, def time.Duration) time.Duration {
	d, err := ParseDuration(s, def)
	if err != nil {
		return def
	}
	return d
}
