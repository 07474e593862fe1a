package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig configures the scrape endpoint.
type ServerConfig struct {
	Port        int
	MetricsPath string
	HealthPath  string
}

// DefaultServerConfig serves /metrics and /health on port 9090.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:        9090,
		MetricsPath: "/metrics",
		HealthPath:  "/health",
	}
}

// Health is the /health response body.
type Health struct {
	Status  string            `json:"status"`
	Started time.Time         `json:"started"`
	Uptime  string            `json:"uptime"`
	Probes  map[string]string `json:"probes,omitempty"`
}

// Probe reports a problem as a non-nil error.
type Probe func() error

// Server exposes the collectors and a health endpoint while runs execute.
type Server struct {
	cfg     ServerConfig
	srv     *http.Server
	started time.Time
	logger  *slog.Logger

	mu     sync.RWMutex
	probes map[string]Probe
}

// NewServer builds the server without starting it.
func NewServer(cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		started: time.Now(),
		logger:  logger,
		probes:  make(map[string]Probe),
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the mux serving both endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.MetricsPath, promhttp.Handler())
	mux.HandleFunc(s.cfg.HealthPath, s.health)
	return mux
}

// AddProbe registers a named health probe, replacing any with that name.
func (s *Server) AddProbe(name string, p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = p
}

// Start listens in the background until Shutdown.
func (s *Server) Start() {
	s.logger.Info("starting metrics server",
		"port", s.cfg.Port,
		"metrics_path", s.cfg.MetricsPath,
		"health_path", s.cfg.HealthPath,
	)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "err", err)
		}
	}()
}

// Shutdown stops the listener, waiting for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	probes := maps.Clone(s.probes)
	s.mu.RUnlock()

	h := Health{
		Status:  "ok",
		Started: s.started,
		Uptime:  time.Since(s.started).Round(time.Millisecond).String(),
		Probes:  make(map[string]string, len(probes)),
	}
	for name, probe := range probes {
		if err := probe(); err != nil {
			h.Probes[name] = err.Error()
			h.Status = "failing"
			continue
		}
		h.Probes[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if h.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(h)
}
