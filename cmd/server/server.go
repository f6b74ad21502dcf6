package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"prediction-feed/internal/domain"
	"prediction-feed/internal/lease"
)

// errRunning is returned when a refresh is already in flight in this process.
var errRunning = errors.New("refresh already running")

// refresher runs one refresh. *orchestrator.Orchestrator implements it.
type refresher interface {
	Refresh(ctx context.Context) (*domain.RefreshSummary, error)
}

// Server schedules refreshes and exposes the HTTP surface.
type Server struct {
	refresher  refresher
	interval   time.Duration
	adminToken string
	backend    string
	metrics    http.Handler
	logger     *slog.Logger

	// baseCtx scopes admin refreshes to the server rather than the request.
	baseCtx context.Context

	// State
	mu          sync.Mutex
	startedAt   time.Time
	running     bool
	lastRun     time.Time
	lastSuccess time.Time
	lastSummary *domain.RefreshSummary
	lastError   string

	// Stats
	runs     int
	failures int
	skipped  int
}

// Run runs a refresh immediately and then on every interval tick.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting refresh scheduler", "interval", s.interval.String())

	s.runScheduled(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *Server) runScheduled(ctx context.Context) {
	if _, err := s.refresh(ctx); err != nil {
		switch {
		case errors.Is(err, errRunning):
			s.logger.Info("refresh already running, skipping")
		case errors.Is(err, lease.ErrHeld):
			s.logger.Info("refresh lease held elsewhere, skipping")
		default:
			s.logger.Error("refresh failed", "error", err)
		}
	}
}

// refresh runs one refresh unless another is in flight.
func (s *Server) refresh(ctx context.Context) (*domain.RefreshSummary, error) {
	s.mu.Lock()
	if s.running {
		s.skipped++
		s.mu.Unlock()
		return nil, errRunning
	}
	s.running = true
	s.mu.Unlock()

	summary, err := s.refresher.Refresh(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = time.Now()
	switch {
	case err == nil:
		s.runs++
		s.lastSuccess = s.lastRun
		s.lastSummary = summary
		s.lastError = ""
	case errors.Is(err, lease.ErrHeld):
		s.skipped++
	default:
		s.failures++
		s.lastError = err.Error()
	}
	return summary, err
}

// Router builds the HTTP handler.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	r.GET("/status", s.handleStatus)

	admin := r.Group("/admin")
	{
		admin.POST("/refresh", s.requireAdmin, s.handleRefresh)
	}
	return r
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status      string                 `json:"status"`
	Backend     string                 `json:"backend"`
	Uptime      string                 `json:"uptime"`
	StartedAt   time.Time              `json:"started_at"`
	LastRun     time.Time              `json:"last_run,omitempty"`
	LastSuccess time.Time              `json:"last_success,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
	Runs        int                    `json:"runs"`
	Failures    int                    `json:"failures"`
	Skipped     int                    `json:"skipped"`
	Running     bool                   `json:"running"`
	LastSummary *domain.RefreshSummary `json:"last_summary,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:      "running",
		Backend:     s.backend,
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt:   s.startedAt,
		LastRun:     s.lastRun,
		LastSuccess: s.lastSuccess,
		LastError:   s.lastError,
		Runs:        s.runs,
		Failures:    s.failures,
		Skipped:     s.skipped,
		Running:     s.running,
		LastSummary: s.lastSummary,
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, resp)
}

// requireAdmin accepts "Authorization: Bearer <token>" or "X-Admin-Token".
// An unset admin token rejects every request.
func (s *Server) requireAdmin(c *gin.Context) {
	token := c.GetHeader("X-Admin-Token")
	if auth := c.GetHeader("Authorization"); token == "" && strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if s.adminToken == "" || token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

// handleRefresh runs the refresh on the server context. A client that
// disconnects gets no response but the run still completes and is recorded.
func (s *Server) handleRefresh(c *gin.Context) {
	type result struct {
		summary *domain.RefreshSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := s.refresh(s.runContext())
		done <- result{summary, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-c.Request.Context().Done():
		s.logger.Info("admin refresh client disconnected, run continues")
		return
	}

	switch {
	case r.err == nil:
		c.JSON(http.StatusOK, r.summary)
	case errors.Is(r.err, errRunning), errors.Is(r.err, lease.ErrHeld):
		c.JSON(http.StatusConflict, gin.H{"error": r.err.Error()})
	default:
		s.logger.Error("admin refresh failed", "error", r.err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": r.err.Error()})
	}
}

func (s *Server) runContext() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

// serveHTTP serves the router until ctx is cancelled.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
