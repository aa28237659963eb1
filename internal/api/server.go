// Package api exposes the chaos engine over a small admin HTTP surface:
// stats, the configured scenario view, health, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Greg89/normaize-server-sub004/internal/chaos"
)

// Config defines admin server configuration.
type Config struct {
	Enabled    bool
	ListenAddr string
	RateLimit  int // requests per second per client IP
	RateBurst  int
}

// Server serves the admin API.
type Server struct {
	logger  *zap.Logger
	config  Config
	engine  *chaos.Engine
	source  chaos.ConfigSource
	metrics *chaos.Metrics
	limiter *IPRateLimiter
	router  *mux.Router
	server  *http.Server
}

// Response is the JSON envelope for all admin endpoints.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Time    time.Time   `json:"time"`
}

// scenarioView is the merged registry/config view returned by /scenarios.
type scenarioView struct {
	Name                 string  `json:"name"`
	Registered           bool    `json:"registered"`
	Configured           bool    `json:"configured"`
	Enabled              bool    `json:"enabled,omitempty"`
	Probability          float64 `json:"probability,omitempty"`
	MaxTriggersPerHour   int     `json:"max_triggers_per_hour,omitempty"`
	TimeWindowRestricted bool    `json:"time_window_restricted,omitempty"`
}

// NewServer creates the admin server.
func NewServer(config Config, logger *zap.Logger, engine *chaos.Engine, source chaos.ConfigSource, metrics *chaos.Metrics) (*Server, error) {
	if !config.Enabled {
		return nil, fmt.Errorf("admin API disabled")
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 50
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 2 * config.RateLimit
	}

	s := &Server{
		logger:  logger,
		config:  config,
		engine:  engine,
		source:  source,
		metrics: metrics,
		limiter: NewIPRateLimiter(config.RateLimit, config.RateBurst),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(s.rateLimitMiddleware)

	v1 := s.router.PathPrefix("/api/v1/chaos").Subrouter()
	v1.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/scenarios", s.handleScenarios).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin API listening", zap.String("addr", s.config.ListenAddr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown admin API: %w", err)
	}
	return nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    s.engine.Stats(),
		Time:    time.Now(),
	})
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	cfg := s.source.Current()

	views := make(map[string]*scenarioView)
	for _, name := range s.engine.Registry().Names() {
		views[name] = &scenarioView{Name: name, Registered: true}
	}
	for name, sc := range cfg.Scenarios {
		v, ok := views[name]
		if !ok {
			v = &scenarioView{Name: name}
			views[name] = v
		}
		v.Configured = true
		v.Enabled = sc.Enabled
		v.Probability = sc.Probability
		v.MaxTriggersPerHour = sc.MaxTriggersPerHour
		v.TimeWindowRestricted = sc.TimeWindowRestricted
	}

	list := make([]*scenarioView, 0, len(views))
	for _, v := range views {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: list, Time: time.Now()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			s.writeJSON(w, http.StatusTooManyRequests, Response{
				Success: false,
				Error:   "rate limit exceeded",
				Time:    time.Now(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
