package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// CheckFunc reports a component as unhealthy by returning an error.
type CheckFunc func(ctx context.Context) error

// Checker performs health checks on the database and any named components.
type Checker struct {
	db           *sql.DB
	checks       map[string]CheckFunc
	version      string
	checkTimeout time.Duration
}

// CheckerConfig holds configuration for the health checker
type CheckerConfig struct {
	DB *sql.DB
	// Checks are extra components such as "redis" or "storage". Components
	// that are not configured should simply be left out.
	Checks  map[string]CheckFunc
	Version string
	Timeout time.Duration
}

// NewChecker creates a new health checker
func NewChecker(cfg *CheckerConfig) *Checker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	checks := make(map[string]CheckFunc, len(cfg.Checks))
	for name, fn := range cfg.Checks {
		if fn != nil {
			checks[name] = fn
		}
	}
	return &Checker{
		db:           cfg.DB,
		checks:       checks,
		version:      cfg.Version,
		checkTimeout: timeout,
	}
}

// CheckDB checks database connectivity
func (c *Checker) CheckDB(ctx context.Context) ComponentHealth {
	start := time.Now()

	if c.db == nil {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: "database not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  "database ping failed",
			Duration: time.Since(start).String(),
		}
	}

	var result int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return ComponentHealth{
			Status:   StatusDegraded,
			Message:  "database query failed",
			Duration: time.Since(start).String(),
		}
	}

	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

func (c *Checker) run(ctx context.Context, name string, fn CheckFunc) ComponentHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  name + " check failed",
			Duration: time.Since(start).String(),
		}
	}

	return ComponentHealth{
		Status:   StatusHealthy,
		Duration: time.Since(start).String(),
	}
}

// Check performs a basic health check (liveness)
func (c *Checker) Check(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// DeepCheck performs a comprehensive health check (readiness)
func (c *Checker) DeepCheck(ctx context.Context) *HealthResponse {
	response := &HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	record := func(name string, result ComponentHealth) {
		mu.Lock()
		response.Components[name] = result
		mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		record("database", c.CheckDB(ctx))
	}()

	for name, fn := range c.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(name, c.run(ctx, name, fn))
		}()
	}

	wg.Wait()

	for _, comp := range response.Components {
		if comp.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
			break
		} else if comp.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// Handler provides HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
}

// NewHandler creates a new health handler
func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

func writeResponse(w http.ResponseWriter, response *HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// LivenessHandler answers as long as the process is serving.
func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, h.checker.Check(r.Context()))
}

// ReadinessHandler checks every dependency. Degraded still returns 200.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, h.checker.DeepCheck(r.Context()))
}
