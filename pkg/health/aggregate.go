package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Report is the JSON-serializable outcome of polling every registered Checker.
type Report struct {
	Status     string            `json:"status"` // "healthy" or "unhealthy"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Uptime     string            `json:"uptime"`
}

// Registry polls a fixed set of named Checkers and renders an aggregate Report.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	started  time.Time
}

// NewRegistry returns an empty Registry with its uptime clock started now.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker), started: time.Now()}
}

// Register adds or replaces a named Checker.
func (r *Registry) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Report runs every registered Checker and aggregates the result. The
// aggregate is unhealthy if any component is.
func (r *Registry) Report(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	status := "healthy"
	components := make(map[string]string, len(checkers))
	for name, checker := range checkers {
		result := checker.Check(ctx)
		if !result.Healthy {
			status = "unhealthy"
			components[name] = "unhealthy: " + result.Message
		} else {
			components[name] = "healthy: " + result.Message
		}
	}

	return Report{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Uptime:     time.Since(r.started).String(),
	}
}

// Handler serves the aggregate health report as JSON, returning 503 when
// unhealthy so it can also back a load-balancer readiness probe.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		report := r.Report(req.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}

// LivenessHandler always reports 200 while the process is running, matching
// the plain liveness-vs-readiness split conventional for Go services.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}
