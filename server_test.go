package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type fakeCounter struct {
	counts    map[string]int64
	expireErr error
	expired   []string
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	f.expired = append(f.expired, key)
	return redis.NewBoolResult(true, nil)
}

func newLimitedRouter(rl *RateLimiter, errs *[]string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		for _, e := range c.Errors {
			*errs = append(*errs, e.Error())
		}
	})
	r.Use(rl.RateLimitMiddleware)
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int64{}}
	var errs []string
	r := newLimitedRouter(NewRateLimiter(counter, 2, time.Minute), &errs)

	codes := []int{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}
	if len(counter.expired) != 1 {
		t.Fatalf("expected the window to be set once, got %v", counter.expired)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
}

func TestRateLimitMiddleware_ReportsExpireFailure(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int64{}, expireErr: errors.New("connection reset")}
	var errs []string
	r := newLimitedRouter(NewRateLimiter(counter, 5, time.Minute), &errs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected the request to pass, got %d", w.Code)
	}
	if len(errs) != 1 {
		t.Fatalf("expected the expire error to be recorded, got %v", errs)
	}
}
