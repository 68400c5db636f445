package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pricing_backend/config"
	"github.com/mmdatafocus/pricing_backend/middlewares"
	"github.com/mmdatafocus/pricing_backend/models"
	"github.com/mmdatafocus/pricing_backend/models/reports"
	"github.com/mmdatafocus/pricing_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// rateCounter is the part of *redis.Client the rate limiter uses.
type rateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client rateCounter
	limit  int64
	window time.Duration
}

func newRouter(h *pricingHandlers, ready func() bool, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(func(c *gin.Context) {
		if !ready() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.Use(extra...)
	r.Use(customErrorLogger(h.logger))
	r.Use(gin.Recovery())

	api := r.Group("/api", middlewares.AuthMiddleware())
	api.POST("/pricing/runs", h.runHandler())
	api.GET("/pricing/runs/last", h.lastRunHandler())
	api.GET("/rfqs/:id/analysis", h.analysisHandler())

	// Push subscriptions authenticate at the Cloud Run ingress.
	r.POST("/pubsub/pricing-run", h.pubSubRunHandler())
	r.NoRoute(customNotFoundHandler)
	return r
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		// deny all unless an allowlist is configured
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = true
	return corsConfig
}

func main() {
	settings, err := config.LoadPricingSettings()
	if err != nil {
		log.Fatalf("pricing settings: %v", err)
	}
	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var recommender atomic.Pointer[workflow.Recommender]
	notifier := workflow.NewRunNotifier(settings)
	h := &pricingHandlers{
		logger: logger,
		run: func(ctx context.Context, trigger string) (workflow.RunSummary, error) {
			return workflow.RunPricing(ctx, recommender.Load(), notifier, trigger)
		},
		lastRun: workflow.LastRunSummary,
		analysis: func() reports.RFQAnalysisStore {
			return models.NewPricingStore(config.GetDB())
		},
	}
	ready := func() bool { return recommender.Load() != nil }

	extra := []gin.HandlerFunc{cors.New(corsConfig())}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		extra = append(extra, rateLimiterFromEnv().RateLimitMiddleware)
	}
	r := newRouter(h, ready, extra...)

	// Listen before connecting so the startup probe passes; app routes answer 503 until ready.
	srv := &http.Server{
		Addr:    ":" + settings.ServicePort,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry(5)

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}
	recommender.Store(workflow.NewRecommender(models.NewPricingStore(db), settings))

	var scheduler *cron.Cron
	if settings.Cron != "" {
		scheduler = cron.New(
			cron.WithLogger(cron.VerbosePrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		)
		_, err := scheduler.AddFunc(settings.Cron, func() {
			if _, err := h.run(sigCtx, workflow.TriggerCron); err != nil {
				config.LogError(logger, "server.go", "cron", "scheduled run", settings.Cron, err)
			}
		})
		if err != nil {
			log.Fatalf("PRICING_CRON %q: %v", settings.Cron, err)
		}
		scheduler.Start()
	}

	logger.WithFields(logrus.Fields{
		"port": settings.ServicePort,
		"cron": settings.Cron,
	}).Info("pricing service ready")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop scheduling before draining; a run in flight finishes its current page.
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// rateLimiterFromEnv reads RATE_LIMIT_MAX_REQUESTS (600) per RATE_LIMIT_WINDOW_SECONDS (60).
func rateLimiterFromEnv() *RateLimiter {
	client := redis.NewClient(&redis.Options{Addr: os.Getenv("REDIS_ADDRESS"), Password: os.Getenv("REDIS_PASSWORD")})
	limit := int64(600)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	windowSec := int64(60)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			windowSec = n
		}
	}
	return NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
}

func NewRateLimiter(client rateCounter, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware counts requests per client IP in a fixed window.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()
	ctx := c.Request.Context()

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		// fail open
		_ = c.Error(err)
		c.Next()
		return
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			// a counter without a TTL would block this client for good
			_ = c.Error(fmt.Errorf("rate limit expire %s: %w", key, err))
			c.Next()
			return
		}
	}
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}
	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
