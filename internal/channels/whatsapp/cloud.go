package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	Status    int
	Code      int
	Message   string
	FBTraceID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp: HTTP %d", e.Status)
	}
	return fmt.Sprintf("whatsapp: HTTP %d (code %d): %s", e.Status, e.Code, e.Message)
}

// CloudOptions configures the Cloud API transport.
type CloudOptions struct {
	BaseURL       string // default https://graph.facebook.com
	Version       string // default v21.0
	PhoneNumberID string
	AccessToken   string
	SendRate      float64 // messages per second, 0 means unlimited
	SendBurst     int
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Cloud sends messages through the WhatsApp Cloud API. Inbound messages
// arrive on the HTTP webhook, not through this type.
type Cloud struct {
	*channels.BaseChannel
	endpoint string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewCloud validates opts and builds the transport.
func NewCloud(opts CloudOptions) (*Cloud, error) {
	if opts.PhoneNumberID == "" || opts.AccessToken == "" {
		return nil, errors.New("whatsapp: phone number id and access token are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://graph.facebook.com"
	}
	if opts.Version == "" {
		opts.Version = "v21.0"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
	}
	burst := opts.SendBurst
	if burst <= 0 {
		burst = 1
	}
	return &Cloud{
		BaseChannel: channels.NewBaseChannel("cloud"),
		endpoint:    strings.TrimRight(opts.BaseURL, "/") + "/" + opts.Version + "/" + opts.PhoneNumberID + "/messages",
		token:       opts.AccessToken,
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
	}, nil
}

func (c *Cloud) Start(context.Context) error {
	c.SetRunning(true)
	slog.Info("whatsapp cloud transport ready", "endpoint", c.endpoint)
	return nil
}

func (c *Cloud) Stop(context.Context) error {
	c.SetRunning(false)
	return nil
}

func (c *Cloud) SendText(ctx context.Context, to, text string) error {
	for _, m := range textMessages(to, text) {
		if err := c.post(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cloud) SendButtons(ctx context.Context, to, body string, buttons []channels.Button) error {
	m, err := ButtonsMessage(to, body, buttons)
	if err != nil {
		return err
	}
	return c.post(ctx, m)
}

func (c *Cloud) SendList(ctx context.Context, to string, list channels.List) error {
	m, err := ListMessage(to, list)
	if err != nil {
		return err
	}
	return c.post(ctx, m)
}

func (c *Cloud) SendDocument(ctx context.Context, to string, doc channels.Document) error {
	return c.post(ctx, DocumentMessage(to, doc))
}

type graphError struct {
	Error struct {
		Message   string `json:"message"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

func (c *Cloud) post(ctx context.Context, m Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("whatsapp: send throttled: %w", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		slog.Debug("whatsapp message sent", "to", m.To, "type", m.Type)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}
	var ge graphError
	if json.Unmarshal(body, &ge) == nil && ge.Error.Message != "" {
		apiErr.Code = ge.Error.Code
		apiErr.Message = ge.Error.Message
		apiErr.FBTraceID = ge.Error.FBTraceID
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	slog.Warn("whatsapp send rejected", "to", m.To, "type", m.Type, "status", resp.StatusCode, "code", apiErr.Code)
	return apiErr
}
