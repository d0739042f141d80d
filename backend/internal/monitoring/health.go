package monitoring

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type CheckFunc func(ctx context.Context) error

type HealthCheck struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// HealthChecker runs named dependency checks. Optional checks are reported
// but never fail readiness.
type HealthChecker struct {
	mu       sync.RWMutex
	checks   map[string]CheckFunc
	optional map[string]bool
	timeout  time.Duration
	started  time.Time
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{
		checks:   make(map[string]CheckFunc),
		optional: make(map[string]bool),
		timeout:  timeout,
		started:  time.Now(),
	}
}

func (h *HealthChecker) Register(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
	delete(h.optional, name)
}

func (h *HealthChecker) RegisterOptional(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
	h.optional[name] = true
}

// Run executes all checks concurrently, each bounded by the checker timeout.
func (h *HealthChecker) Run(ctx context.Context) map[string]HealthCheck {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	results := make(map[string]HealthCheck, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := fn(checkCtx)
			result := HealthCheck{
				Name:      name,
				Status:    StatusHealthy,
				Latency:   time.Since(start),
				CheckedAt: time.Now(),
			}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Message = err.Error()
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	return results
}

// Healthy reports false if any required check failed.
func (h *HealthChecker) Healthy(results map[string]HealthCheck) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for name, result := range results {
		if result.Status != StatusHealthy && !h.optional[name] {
			return false
		}
	}
	return true
}

// HealthHandler reports every check. Degraded optional dependencies keep
// the response at 200.
func (h *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		results := h.Run(c.Request.Context())

		status := StatusHealthy
		code := http.StatusOK
		if !h.Healthy(results) {
			status = StatusUnhealthy
			code = http.StatusServiceUnavailable
		}

		names := make([]string, 0, len(results))
		for name := range results {
			names = append(names, name)
		}
		sort.Strings(names)
		ordered := make([]HealthCheck, 0, len(names))
		for _, name := range names {
			ordered = append(ordered, results[name])
		}

		c.JSON(code, gin.H{
			"status":    status,
			"checks":    ordered,
			"uptime":    time.Since(h.started).String(),
			"timestamp": time.Now().UTC(),
		})
	}
}

func (h *HealthChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.Healthy(h.Run(c.Request.Context())) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
