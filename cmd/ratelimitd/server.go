package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/lodgekit/ratelimit/pkg/httplimit"
	"github.com/lodgekit/ratelimit/pkg/limiter"
)

// keyHeader lets an edge proxy pass a pre-computed caller identity instead
// of relying on the forwarded address chain.
const keyHeader = "X-RateLimit-Key"

const shutdownTimeout = 5 * time.Second

// checkKey prefers the edge-supplied key header, then the client address.
func checkKey(r *http.Request) string {
	if k := r.Header.Get(keyHeader); k != "" {
		return k
	}
	return limiter.ClientKey(r)
}

// buildLimiters constructs one Limiter per configured class, backed by
// Redis when storage.type is "redis". The returned closer tears down the
// limiters and, when present, the Redis client.
func buildLimiters(cfg config) (map[string]*limiter.Limiter, func(), error) {
	var client *redis.Client
	if cfg.Storage.Type == "redis" {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
	}

	limiters := make(map[string]*limiter.Limiter, len(cfg.Classes))
	closeAll := func() {
		for _, l := range limiters {
			l.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}

	for _, cl := range cfg.Classes {
		name := cl.Name
		lcfg := cl.limiterConfig()
		opts := []limiter.Option{
			limiter.WithKeyFunc(checkKey),
			limiter.WithOnLimitReached(func(key string, dec limiter.Decision) {
				log.Printf("limit reached: class=%s key=%s retry_after=%s", name, key, dec.RetryAfter)
			}),
		}
		if client != nil {
			strategy, err := redisStrategy(client, lcfg)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			opts = append(opts, limiter.WithStrategy(strategy))
		}
		l, err := limiter.New(lcfg, opts...)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		limiters[name] = l
	}
	return limiters, closeAll, nil
}

func redisStrategy(client *redis.Client, cfg limiter.Config) (limiter.Strategy, error) {
	switch cfg.Algorithm {
	case limiter.SlidingWindow:
		return limiter.NewRedisSlidingWindow(client, cfg)
	case limiter.TokenBucket:
		return limiter.NewRedisTokenBucket(client, cfg)
	default:
		return limiter.NewRedisFixedWindow(client, cfg)
	}
}

// newRouter mounts one guarded decision route per class plus health and
// stats endpoints. A 204 from /v1/check/<class> means the caller is within
// budget; a 429 carries the full deny envelope.
func newRouter(limiters map[string]*limiter.Limiter) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/stats", func(c *gin.Context) {
		stats := make([]limiter.Stats, 0, len(limiters))
		for _, l := range limiters {
			stats = append(stats, l.Stats())
		}
		sort.Slice(stats, func(i, j int) bool { return stats[i].Class < stats[j].Class })
		c.JSON(http.StatusOK, gin.H{"classes": stats})
	})

	check := r.Group("/v1/check")
	for name, l := range limiters {
		check.Any("/"+name, httplimit.Gin(l), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
	}
	return r
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	limiters, closeAll, err := buildLimiters(cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: newRouter(limiters),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	log.Printf("ratelimitd listening on %s (%d classes, storage=%s)",
		cfg.Server.ListenAddr, len(cfg.Classes), cfg.Storage.Type)

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
