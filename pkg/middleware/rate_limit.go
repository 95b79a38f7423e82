package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/types"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 15 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet 按 key 懒创建令牌桶，定期清除闲置的桶.
type limiterSet struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	entries map[string]*limiterEntry
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	s := &limiterSet{rps: rate.Limit(rps), burst: burst, entries: map[string]*limiterEntry{}}

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()

		for now := range ticker.C {
			s.sweep(now)
		}
	}()

	return s
}

func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.entries[key] = e
	}

	e.lastSeen = now

	return e.limiter
}

func (s *limiterSet) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(s.entries, k)
		}
	}
}

// RateLimitMiddleware 返回基于配置的限流中间件.
// key 取值 global、ip、user（UserMiddleware 识别出的调用方）或 header:Header-Name，非全局模式缺值时回退到 IP.
// 配置了 upload_rps 时上传接口另用一组更严格的令牌桶.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	general := newLimiterSet(cfg.RPS, cfg.Burst)

	var uploads *limiterSet
	if cfg.UploadRPS > 0 {
		burst := cfg.UploadBurst
		if burst <= 0 {
			burst = 1
		}

		uploads = newLimiterSet(cfg.UploadRPS, burst)
	}

	return func(c *gin.Context) {
		key := limitKey(c, keyMode)
		now := time.Now()

		set := general
		if uploads != nil && c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/upload") {
			set = uploads
		}

		r := set.get(key, now).ReserveN(now, 1)
		if !r.OK() {
			tooMany(c, time.Second)

			return
		}

		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			tooMany(c, delay)

			return
		}

		c.Next()
	}
}

func tooMany(c *gin.Context, retryAfter time.Duration) {
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, types.ErrorResponse{
		Error:   "rate limit exceeded",
		Message: "request too frequent, please try again later",
	})
}

func limitKey(c *gin.Context, mode string) string {
	var key string

	switch {
	case mode == "global" || mode == "":
		return "global"
	case strings.HasPrefix(mode, "header:"):
		key = c.GetHeader(strings.TrimPrefix(mode, "header:"))
	case mode == "user":
		key = GetUser(c)
	}

	if key == "" {
		key = clientIP(c)
	}

	if key == "" {
		key = "unknown"
	}

	return key
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}

	return host
}
