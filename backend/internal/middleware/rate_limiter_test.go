package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func setupTestGin() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serveFrom(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func TestRateLimiter_Allow(t *testing.T) {
	router := setupTestGin()
	router.Use(RateLimiter(rate.Limit(1), 1))
	router.GET("/test", okHandler)

	w1 := serveFrom(router, "127.0.0.1:12345")
	if w1.Code != http.StatusOK {
		t.Errorf("Expected first request to succeed, got status %d", w1.Code)
	}

	w2 := serveFrom(router, "127.0.0.1:12345")
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("Expected second request to be rate limited, got status %d", w2.Code)
	}
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	router := setupTestGin()
	router.Use(RateLimiter(rate.Limit(1), 1))
	router.GET("/test", okHandler)

	w1 := serveFrom(router, "127.0.0.1:12345")
	w2 := serveFrom(router, "192.168.1.1:12345")

	if w1.Code != http.StatusOK {
		t.Errorf("Expected first request to succeed, got status %d", w1.Code)
	}
	if w2.Code != http.StatusOK {
		t.Errorf("Expected second request from different IP to succeed, got status %d", w2.Code)
	}
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewDistributedRateLimiter(t *testing.T) {
	client, _ := setupTestRedis(t)

	limiter := NewDistributedRateLimiter(client, nil)

	if limiter.redis != client {
		t.Error("Expected Redis client to be set")
	}
	if limiter.logger == nil {
		t.Error("Expected a no-op logger when none is given")
	}

	limiter.CreateMiddleware("test", &RateLimit{Rate: 5, Window: time.Minute})
	if _, exists := limiter.limits["test"]; !exists {
		t.Error("Expected limit 'test' to be stored")
	}
}

func TestDistributedRateLimiter_AllowRequests(t *testing.T) {
	client, _ := setupTestRedis(t)

	router := setupTestGin()
	limiter := NewDistributedRateLimiter(client, nil)
	router.Use(limiter.CreateMiddleware("test", &RateLimit{
		Rate:    2,
		Window:  time.Minute,
		KeyFunc: IPKeyFunc,
	}))
	router.GET("/test", okHandler)

	for i := 0; i < 2; i++ {
		w := serveFrom(router, "127.0.0.1:12345")
		if w.Code != http.StatusOK {
			t.Errorf("Expected request %d to succeed, got status %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("Expected X-RateLimit-Limit 2, got %q", w.Header().Get("X-RateLimit-Limit"))
		}
	}

	w := serveFrom(router, "127.0.0.1:12345")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected third request to be rate limited, got status %d", w.Code)
	}

	// another client has its own window
	w = serveFrom(router, "10.0.0.1:12345")
	if w.Code != http.StatusOK {
		t.Errorf("Expected request from another IP to succeed, got status %d", w.Code)
	}
}

func TestDistributedRateLimiter_WindowExpires(t *testing.T) {
	client, mr := setupTestRedis(t)

	router := setupTestGin()
	limiter := NewDistributedRateLimiter(client, nil)
	router.Use(limiter.CreateMiddleware("test", &RateLimit{Rate: 1, Window: time.Second}))
	router.GET("/test", okHandler)

	if w := serveFrom(router, "127.0.0.1:1"); w.Code != http.StatusOK {
		t.Fatalf("Expected first request to succeed, got %d", w.Code)
	}

	// the key TTL elapses with the window
	mr.FastForward(2 * time.Second)

	if w := serveFrom(router, "127.0.0.1:1"); w.Code != http.StatusOK {
		t.Errorf("Expected request after the window to succeed, got %d", w.Code)
	}
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	router := setupTestGin()
	limiter := NewDistributedRateLimiter(client, nil)
	router.Use(limiter.CreateMiddleware("test", &RateLimit{
		Rate:    1,
		Window:  time.Minute,
		KeyFunc: IPKeyFunc,
	}))
	router.GET("/test", okHandler)

	w := serveFrom(router, "127.0.0.1:12345")
	if w.Code != http.StatusOK {
		t.Errorf("Expected request to succeed when Redis is down (fail open), got status %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Error") != "true" {
		t.Error("Expected X-RateLimit-Error header when Redis is down")
	}
}

func TestDistributedRateLimiter_OnLimitCallback(t *testing.T) {
	client, _ := setupTestRedis(t)

	router := setupTestGin()
	limiter := NewDistributedRateLimiter(client, nil)

	onLimitCalled := false
	router.Use(limiter.CreateMiddleware("test", &RateLimit{
		Rate:    1,
		Window:  time.Minute,
		KeyFunc: IPKeyFunc,
		OnLimit: func(c *gin.Context) {
			onLimitCalled = true
			c.JSON(http.StatusForbidden, gin.H{"custom": "rate limit"})
		},
	}))
	handlerCalls := 0
	router.GET("/test", func(c *gin.Context) {
		handlerCalls++
		okHandler(c)
	})

	serveFrom(router, "127.0.0.1:12345")
	w2 := serveFrom(router, "127.0.0.1:12345")

	if !onLimitCalled {
		t.Error("Expected OnLimit callback to be called")
	}
	if w2.Code != http.StatusForbidden {
		t.Errorf("Expected custom status from OnLimit callback, got %d", w2.Code)
	}
	if handlerCalls != 1 {
		t.Errorf("Expected handler to run once, ran %d times", handlerCalls)
	}
}

func TestIPKeyFunc(t *testing.T) {
	router := setupTestGin()
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, IPKeyFunc(c))
	})

	w := serveFrom(router, "192.168.1.100:54321")
	if w.Body.String() != "192.168.1.100" {
		t.Errorf("Expected key 192.168.1.100, got %q", w.Body.String())
	}
}
