package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/hrdesk/internal/channels"
	"github.com/nextlevelbuilder/hrdesk/internal/router"
)

// DefaultMaxBodyBytes caps webhook bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// Dispatcher consumes raw webhook bodies.
type Dispatcher interface {
	HandleWebhook(ctx context.Context, body []byte) (router.Outcome, error)
}

// WebhookOptions configures WebhookHandler.
type WebhookOptions struct {
	VerifyToken  string
	AppSecret    string // enables X-Hub-Signature-256 checks when set
	MaxBodyBytes int64
	Limiter      *channels.KeyedLimiter // GET verification attempts per client IP
}

// WebhookHandler serves the WhatsApp webhook: the GET verification
// handshake and POST deliveries.
type WebhookHandler struct {
	dispatch    Dispatcher
	verifyToken string
	appSecret   []byte
	maxBody     int64
	limiter     *channels.KeyedLimiter
}

// NewWebhookHandler creates the webhook endpoint handler.
func NewWebhookHandler(d Dispatcher, opts WebhookOptions) *WebhookHandler {
	h := &WebhookHandler{
		dispatch:    d,
		verifyToken: opts.VerifyToken,
		maxBody:     opts.MaxBodyBytes,
		limiter:     opts.Limiter,
	}
	if opts.AppSecret != "" {
		h.appSecret = []byte(opts.AppSecret)
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	if h.limiter == nil {
		h.limiter = channels.NewKeyedLimiter(0, 0)
	}
	return h
}

// RegisterRoutes registers the webhook routes on mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhook", h.handleVerify)
	mux.HandleFunc("POST /webhook", h.handleDelivery)
}

func (h *WebhookHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter.Allow(ip) {
		slog.Warn("webhook verification rate limited", "ip", ip)
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	q := r.URL.Query()
	mode, token, challenge := q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge")
	if mode != "subscribe" || h.verifyToken == "" ||
		!hmac.Equal([]byte(token), []byte(h.verifyToken)) {
		slog.Warn("webhook verification failed", "ip", ip, "mode", mode)
		http.Error(w, "Verification failed", http.StatusForbidden)
		return
	}

	slog.Info("webhook verified", "ip", ip)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

func (h *WebhookHandler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			slog.Warn("webhook body too large", "limit", h.maxBody)
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		slog.Warn("webhook body read failed", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.appSecret != nil && !validSignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		slog.Warn("webhook signature mismatch", "ip", clientIP(r))
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	// Dispatch runs to completion even if the provider hangs up.
	ctx := context.WithoutCancel(r.Context())
	outcome, err := h.dispatch.HandleWebhook(ctx, body)
	if err != nil {
		slog.Debug("webhook dispatch error", "outcome", outcome.String(), "error", err)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// validSignature checks a "sha256=<hex>" HMAC of body.
func validSignature(secret, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
