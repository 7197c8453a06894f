// Package gateway runs the inbound HTTP listener: the WhatsApp webhook
// and a health probe.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/nextlevelbuilder/hrdesk/internal/config"
	httpapi "github.com/nextlevelbuilder/hrdesk/internal/http"
	"github.com/nextlevelbuilder/hrdesk/pkg/protocol"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Probe reports whether a dependency is ready. Nil probes are skipped.
type Probe func() bool

// Server is the HTTP gateway.
type Server struct {
	cfg     config.GatewayConfig
	webhook *httpapi.WebhookHandler
	ready   map[string]Probe

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a gateway serving webhook on cfg.Host:cfg.Port.
func NewServer(cfg config.GatewayConfig, webhook *httpapi.WebhookHandler) *Server {
	return &Server{cfg: cfg, webhook: webhook, ready: make(map[string]Probe)}
}

// AddProbe registers a readiness check reported by /health.
func (s *Server) AddProbe(name string, p Probe) {
	if p != nil {
		s.ready[name] = p
	}
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.webhook != nil {
		s.webhook.RegisterRoutes(mux)
	}
	s.mux = mux
	return mux
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.BuildMux(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	slog.Info("gateway starting", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("gateway shutdown", "error", err)
		}
	}()

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status   string   `json:"status"`
	Protocol int      `json:"protocol"`
	Down     []string `json:"down,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Protocol: protocol.ProtocolVersion}
	for name, p := range s.ready {
		if !p() {
			resp.Down = append(resp.Down, name)
		}
	}
	code := http.StatusOK
	if len(resp.Down) > 0 {
		sort.Strings(resp.Down)
		resp.Status, code = "degraded", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
