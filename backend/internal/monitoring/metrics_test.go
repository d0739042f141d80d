package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestGin() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics()

	router := setupTestGin()
	router.Use(m.Middleware())
	router.GET("/tasks/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	for _, path := range []string{"/tasks/1", "/tasks/2", "/missing"} {
		req, _ := http.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}

	// route pattern, not raw path
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/tasks/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRequests))
}

func TestMetrics_RecordReconcileAndCache(t *testing.T) {
	m := NewMetrics()

	m.RecordReconcile("inserted")
	m.RecordReconcile("inserted")
	m.RecordReconcile("unchanged")
	m.RecordCacheOp("get", "hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reconciles.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciles.WithLabelValues("unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheOps.WithLabelValues("get", "hit")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordReconcile("inserted")
	m.RecordCacheOp("get", "miss")

	router := setupTestGin()
	router.Use(m.Middleware())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordReconcile("reactivated")

	router := setupTestGin()
	router.GET("/metrics", m.Handler())

	req, _ := http.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `due_by_reconcile_total{outcome="reactivated"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_Concurrency(t *testing.T) {
	m := NewMetrics()

	router := setupTestGin()
	router.Use(m.Middleware())
	router.GET("/test", func(c *gin.Context) {
		time.Sleep(time.Millisecond * 10)
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest("GET", "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/test", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRequests))
}

func TestHealthChecker_Run(t *testing.T) {
	h := NewHealthChecker(time.Second)
	h.Register("check1", func(ctx context.Context) error { return nil })
	h.Register("check2", func(ctx context.Context) error { return errors.New("failed") })

	checks := h.Run(context.Background())
	require.Len(t, checks, 2)
	assert.Equal(t, StatusHealthy, checks["check1"].Status)
	assert.Equal(t, StatusUnhealthy, checks["check2"].Status)
	assert.Equal(t, "failed", checks["check2"].Message)
	assert.False(t, h.Healthy(checks))
}

func TestHealthChecker_Timeout(t *testing.T) {
	h := NewHealthChecker(20 * time.Millisecond)
	h.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	checks := h.Run(context.Background())
	assert.Equal(t, StatusUnhealthy, checks["slow"].Status)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name         string
		register     func(h *HealthChecker)
		expectedCode int
		expectedBody string
	}{
		{
			name: "healthy",
			register: func(h *HealthChecker) {
				h.Register("database", func(ctx context.Context) error { return nil })
			},
			expectedCode: http.StatusOK,
			expectedBody: StatusHealthy,
		},
		{
			name: "optional dependency down",
			register: func(h *HealthChecker) {
				h.Register("database", func(ctx context.Context) error { return nil })
				h.RegisterOptional("redis", func(ctx context.Context) error { return errors.New("connection refused") })
			},
			expectedCode: http.StatusOK,
			expectedBody: StatusHealthy,
		},
		{
			name: "required dependency down",
			register: func(h *HealthChecker) {
				h.Register("database", func(ctx context.Context) error { return errors.New("service down") })
			},
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(time.Second)
			tt.register(h)

			router := setupTestGin()
			router.GET("/health", h.HealthHandler())

			req, _ := http.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedBody, response["status"])
			assert.Contains(t, response, "uptime")
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	h := NewHealthChecker(time.Second)
	ready := true
	h.Register("database", func(ctx context.Context) error {
		if !ready {
			return errors.New("not ready")
		}
		return nil
	})

	router := setupTestGin()
	router.GET("/ready", h.ReadinessHandler())

	req, _ := http.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())

	ready = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not ready"}`, w.Body.String())
}
